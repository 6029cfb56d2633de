package jsonrpc

import (
	stderrors "errors"

	"github.com/creachadair/jrpc2"
	lerrors "github.com/mezonai/credits/errors"
	"github.com/mezonai/credits/jsonx"
)

// JSON-RPC error codes per ledger error code
const (
	CodeInternal          jrpc2.Code = -32000
	CodeNotFound          jrpc2.Code = -32004
	CodeInsufficientFunds jrpc2.Code = -32010
	CodeAlreadyExists     jrpc2.Code = -32011
	CodeBusy              jrpc2.Code = -32012
)

func rpcCode(code lerrors.LedgerErrorCode) jrpc2.Code {
	switch code {
	case lerrors.ErrCodeInvalidOperation:
		return jrpc2.InvalidParams
	case lerrors.ErrCodeNotFound:
		return CodeNotFound
	case lerrors.ErrCodeInsufficientFunds:
		return CodeInsufficientFunds
	case lerrors.ErrCodeAlreadyExists:
		return CodeAlreadyExists
	case lerrors.ErrCodeBusy, lerrors.ErrCodeConflict:
		return CodeBusy
	}
	return CodeInternal
}

// toJRPC2Error puts the ledger error in the data member so clients can
// switch on the string code.
func toJRPC2Error(err error) error {
	if err == nil {
		return nil
	}
	code := lerrors.Code(err)
	msg := lerrors.Message(err)
	return jrpc2.Errorf(rpcCode(code), "%s", msg).WithData(lerrors.LedgerError{Code: code, Message: msg})
}

// FromRPCError recovers the ledger error sent by toJRPC2Error. Errors
// without ledger data are returned unchanged.
func FromRPCError(err error) error {
	var rpcErr *jrpc2.Error
	if !stderrors.As(err, &rpcErr) || len(rpcErr.Data) == 0 {
		return err
	}
	var le lerrors.LedgerError
	if jsonx.Unmarshal(rpcErr.Data, &le) != nil || le.Code == "" {
		return err
	}
	return &le
}
