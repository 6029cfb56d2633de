package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerError_IsMatchesOnCode(t *testing.T) {
	err := NewError(ErrCodeNotFound, ErrMsgAccountNotFound)
	assert.True(t, stderrors.Is(err, ErrNotFound))
	assert.False(t, stderrors.Is(err, ErrBusy))

	wrapped := fmt.Errorf("get account: %w", err)
	assert.True(t, stderrors.Is(wrapped, ErrNotFound))
	assert.Equal(t, ErrCodeNotFound, Code(wrapped))
}

func TestCode(t *testing.T) {
	assert.Equal(t, LedgerErrorCode(""), Code(nil))
	assert.Equal(t, ErrCodeInternal, Code(stderrors.New("disk on fire")))
	assert.Equal(t, ErrCodeInsufficientFunds, Code(ErrInsufficientFunds))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrBusy))
	assert.True(t, IsRetryable(fmt.Errorf("commit: %w", ErrConflict)))
	assert.False(t, IsRetryable(ErrInsufficientFunds))
	assert.False(t, IsRetryable(stderrors.New("boom")))
}

func TestMessage_MasksInternal(t *testing.T) {
	assert.Equal(t, ErrMsgInternal, Message(stderrors.New("pq: connection refused")))
	assert.Equal(t, ErrMsgSelfTransfer, Message(NewError(ErrCodeInvalidOperation, ErrMsgSelfTransfer)))
}

func TestLedgerError_ErrorIsJSON(t *testing.T) {
	err := NewError(ErrCodeBusy, "try later")
	assert.JSONEq(t, `{"code":"busy","message":"try later"}`, err.Error())
}
