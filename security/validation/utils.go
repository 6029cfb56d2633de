package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/holiman/uint256"
	"github.com/mezonai/credits/errors"
	"github.com/mezonai/credits/types"
	"github.com/mr-tron/base58"
	"golang.org/x/text/unicode/norm"
)

var InjectionRegexp = BuildInjectionPatterns()

// BuildInjectionPatterns builds regexp for injection detection (case-insensitive)
func BuildInjectionPatterns() *regexp.Regexp {
	parts := make([]string, 0, len(InjectionPatterns))
	for _, pattern := range InjectionPatterns {
		pNorm := norm.NFC.String(pattern)
		parts = append(parts, regexp.QuoteMeta(pNorm))
	}
	// (?i) for case-insensitive
	return regexp.MustCompile("(?i)" + strings.Join(parts, "|"))
}

// ValidateAddress checks that addr is a base58 wallet address. The system
// sentinel is never a valid user address.
func ValidateAddress(fieldName, addr string) error {
	if addr == "" || addr == types.SystemAddress {
		return invalid("%s: %s", fieldName, errors.ErrMsgInvalidAddress)
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return invalid("%s: %s", fieldName, errors.ErrMsgInvalidAddress)
	}
	if len(decoded) < MinAddressBytes || len(decoded) > MaxAddressBytes {
		return invalid("%s: %s", fieldName, errors.ErrMsgInvalidAddress)
	}
	return nil
}

// ValidateAmount requires a strictly positive amount.
func ValidateAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return errors.NewError(errors.ErrCodeInvalidOperation, errors.ErrMsgInvalidAmount)
	}
	return nil
}

// ParseAmount parses a decimal minor-unit amount. Signs, fractions and hex
// are rejected.
func ParseAmount(raw string) (*uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-") {
		return nil, errors.NewError(errors.ErrCodeInvalidOperation, errors.ErrMsgInvalidAmount)
	}
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInvalidOperation, errors.ErrMsgInvalidAmount)
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func ValidateIdempotencyKey(key string) error {
	if key == "" || len(key) > MaxIdempotencyKeyLength {
		return errors.NewError(errors.ErrCodeInvalidOperation, errors.ErrMsgInvalidIdempotencyKey)
	}
	for _, r := range key {
		if r > unicode.MaxASCII || unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.NewError(errors.ErrCodeInvalidOperation, errors.ErrMsgInvalidIdempotencyKey)
		}
	}
	return nil
}

// NormalizeMemo returns the NFC form of memo, or an error when it is too
// long or looks like an injection attempt.
func NormalizeMemo(memo string) (string, error) {
	normalized := norm.NFC.String(memo)
	if utf8.RuneCountInString(normalized) > MaxMemoLength {
		return "", errors.NewError(errors.ErrCodeInvalidOperation, errors.ErrMsgInvalidMemo)
	}
	if InjectionRegexp.MatchString(normalized) {
		return "", errors.NewError(errors.ErrCodeInvalidOperation, errors.ErrMsgInvalidMemo)
	}
	for _, r := range normalized {
		if unicode.IsControl(r) {
			return "", errors.NewError(errors.ErrCodeInvalidOperation, errors.ErrMsgInvalidMemo)
		}
	}
	return normalized, nil
}

// ValidatePageSize checks limit against [1, max]. Zero means "use the
// default" and is resolved by the caller.
func ValidatePageSize(limit, max int) error {
	if limit < 0 || limit > max {
		return errors.NewError(errors.ErrCodeInvalidOperation, errors.ErrMsgInvalidPageSize)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.NewError(errors.ErrCodeInvalidOperation, fmt.Sprintf(format, args...))
}
