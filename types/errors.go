package types

import (
	"errors"
)

var (
	ErrBelowMinimum           = errors.New("contribution below minimum")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidRecipient       = errors.New("invalid recipient")
	ErrInvalidCampaign        = errors.New("invalid campaign parameters")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrAlreadyVoted           = errors.New("already voted")
	ErrRequestAlreadyComplete = errors.New("request already complete")
	ErrNotAContributor        = errors.New("not a contributor")
	ErrRequestNotFound        = errors.New("request not found")
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrMajorityNotReached     = errors.New("majority not reached")
	ErrInsufficientBalance    = errors.New("insufficient campaign balance")
	ErrTransferFailed         = errors.New("transfer failed")
	ErrFundsUnavailable       = errors.New("contribution funds unavailable")
	ErrNonceInvalid           = errors.New("nonce invalid")
	ErrSigInvalid             = errors.New("signature invalid")
	ErrInvalidTx              = errors.New("invalid tx")
	ErrStorage                = errors.New("storage failure")
)

// ABCI result codes, one per error kind. Zero is success.
const (
	CodeOK                     uint32 = 0
	CodeInternal               uint32 = 1
	CodeBelowMinimum           uint32 = 10
	CodeInvalidAmount          uint32 = 11
	CodeInvalidRecipient       uint32 = 12
	CodeInvalidCampaign        uint32 = 13
	CodeUnauthorized           uint32 = 20
	CodeAlreadyVoted           uint32 = 30
	CodeRequestAlreadyComplete uint32 = 31
	CodeNotAContributor        uint32 = 32
	CodeRequestNotFound        uint32 = 33
	CodeCampaignNotFound       uint32 = 34
	CodeMajorityNotReached     uint32 = 40
	CodeInsufficientBalance    uint32 = 41
	CodeTransferFailed         uint32 = 50
	CodeFundsUnavailable       uint32 = 51
	CodeNonceInvalid           uint32 = 60
	CodeSigInvalid             uint32 = 61
	CodeInvalidTx              uint32 = 62
	CodeStorage                uint32 = 70
)

var errorCodes = []struct {
	err  error
	code uint32
}{
	{ErrBelowMinimum, CodeBelowMinimum},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInvalidRecipient, CodeInvalidRecipient},
	{ErrInvalidCampaign, CodeInvalidCampaign},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrAlreadyVoted, CodeAlreadyVoted},
	{ErrRequestAlreadyComplete, CodeRequestAlreadyComplete},
	{ErrNotAContributor, CodeNotAContributor},
	{ErrRequestNotFound, CodeRequestNotFound},
	{ErrCampaignNotFound, CodeCampaignNotFound},
	{ErrMajorityNotReached, CodeMajorityNotReached},
	{ErrInsufficientBalance, CodeInsufficientBalance},
	{ErrTransferFailed, CodeTransferFailed},
	{ErrFundsUnavailable, CodeFundsUnavailable},
	{ErrNonceInvalid, CodeNonceInvalid},
	{ErrSigInvalid, CodeSigInvalid},
	{ErrInvalidTx, CodeInvalidTx},
	{ErrStorage, CodeStorage},
}

// ErrorCode maps an error to its result code. Unknown errors are internal.
func ErrorCode(err error) uint32 {
	if err == nil {
		return CodeOK
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// CodeError is the inverse of ErrorCode, for clients reading result codes.
// It returns nil for CodeOK and for codes with no error kind.
func CodeError(code uint32) error {
	for _, ec := range errorCodes {
		if ec.code == code {
			return ec.err
		}
	}
	return nil
}
