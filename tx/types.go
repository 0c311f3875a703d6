package tx

import (
	"errors"
	"fmt"

	"github.com/calehh/cfund-app/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type CFTxType uint8

const (
	CFTxTypeUnknown         CFTxType = 0
	CFTxTypeCreateCampaign  CFTxType = 1
	CFTxTypeContribute      CFTxType = 2
	CFTxTypeCreateRequest   CFTxType = 3
	CFTxTypeApproveRequest  CFTxType = 4
	CFTxTypeFinalizeRequest CFTxType = 5
)

func (t CFTxType) String() string {
	switch t {
	case CFTxTypeCreateCampaign:
		return "create_campaign"
	case CFTxTypeContribute:
		return "contribute"
	case CFTxTypeCreateRequest:
		return "create_request"
	case CFTxTypeApproveRequest:
		return "approve_request"
	case CFTxTypeFinalizeRequest:
		return "finalize_request"
	}
	return "unknown"
}

const (
	CFTxVersion0 uint8 = 0
	CFTxVersion1 uint8 = 1
)

const CFTxSigLen = crypto.SignatureLength

var (
	ErrInvalidTx            = types.ErrInvalidTx
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
	ErrMissingSig           = fmt.Errorf("%w: missing signature", types.ErrSigInvalid)
)
