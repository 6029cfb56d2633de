package validation

import (
	"crypto/sha256"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/mezonai/credits/errors"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress(name string) string {
	sum := sha256.Sum256([]byte(name))
	return base58.Encode(sum[:])
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "valid 32 byte key", addr: testAddress("alice"), wantErr: false},
		{name: "empty", addr: "", wantErr: true},
		{name: "system sentinel", addr: "system", wantErr: true},
		{name: "not base58", addr: "0OIl" + testAddress("bob"), wantErr: true},
		{name: "too short", addr: base58.Encode([]byte("short")), wantErr: true},
		{name: "too long", addr: base58.Encode(make([]byte, MaxAddressBytes+1)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(AddressField, tt.addr)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidOperation))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    uint64
		wantErr bool
	}{
		{raw: "100", want: 100},
		{raw: " 7 ", want: 7},
		{raw: "0", wantErr: true},
		{raw: "-5", wantErr: true},
		{raw: "+5", wantErr: true},
		{raw: "1.5", wantErr: true},
		{raw: "0x10", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidOperation, errors.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Uint64())
		})
	}
}

func TestValidateAmount(t *testing.T) {
	assert.Error(t, ValidateAmount(nil))
	assert.Error(t, ValidateAmount(uint256.NewInt(0)))
	assert.NoError(t, ValidateAmount(uint256.NewInt(1)))
}

func TestValidateIdempotencyKey(t *testing.T) {
	assert.NoError(t, ValidateIdempotencyKey("K1"))
	assert.NoError(t, ValidateIdempotencyKey(strings.Repeat("k", MaxIdempotencyKeyLength)))
	assert.Error(t, ValidateIdempotencyKey(""))
	assert.Error(t, ValidateIdempotencyKey(strings.Repeat("k", MaxIdempotencyKeyLength+1)))
	assert.Error(t, ValidateIdempotencyKey("has space"))
	assert.Error(t, ValidateIdempotencyKey("ключ"))
}

func TestNormalizeMemo(t *testing.T) {
	got, err := NormalizeMemo("café")
	require.NoError(t, err)
	assert.Equal(t, "café", got)

	_, err = NormalizeMemo(strings.Repeat("é", MaxMemoLength+1))
	assert.Error(t, err)

	_, err = NormalizeMemo("hello {{ .Env }}")
	assert.Error(t, err)

	_, err = NormalizeMemo("line\nbreak")
	assert.Error(t, err)

	got, err = NormalizeMemo("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValidatePageSize(t *testing.T) {
	assert.NoError(t, ValidatePageSize(0, 100))
	assert.NoError(t, ValidatePageSize(100, 100))
	assert.Error(t, ValidatePageSize(101, 100))
	assert.Error(t, ValidatePageSize(-1, 100))
}
