package store

import (
	"encoding/base64"
	"strconv"
	"strings"

	lerrors "github.com/mezonai/credits/errors"
)

const cursorVersion = "v1:"

// EncodeCursor turns a log sequence into an opaque page token
func EncodeCursor(seq uint64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorVersion + strconv.FormatUint(seq, 10)))
}

// DecodeCursor is the inverse of EncodeCursor. An empty cursor means "from
// the newest entry" and decodes to 0.
func DecodeCursor(cursor string) (uint64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || !strings.HasPrefix(string(raw), cursorVersion) {
		return 0, lerrors.NewError(lerrors.ErrCodeInvalidOperation, lerrors.ErrMsgInvalidCursor)
	}
	seq, err := strconv.ParseUint(strings.TrimPrefix(string(raw), cursorVersion), 10, 64)
	if err != nil || seq == 0 {
		return 0, lerrors.NewError(lerrors.ErrCodeInvalidOperation, lerrors.ErrMsgInvalidCursor)
	}
	return seq, nil
}
