package tx

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/calehh/cfund-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type CFTx struct {
	Version uint8    `json:"version"`
	Type    CFTxType `json:"type"`
	Nonce   uint64   `json:"nonce"`
	Tx      any      `json:"tx"`
	Sig     []byte   `json:"sig"`
}

type CreateCampaignTx struct {
	Params types.CampaignParams `json:"params"`
}

type ContributeTx struct {
	Campaign common.Address `json:"campaign"`
	Amount   uint64         `json:"amount"`
}

// CreateRequestTx keeps the recipient as text so a malformed identity is
// reported as an invalid recipient instead of an undecodable tx.
type CreateRequestTx struct {
	Campaign    common.Address `json:"campaign"`
	Description string         `json:"description"`
	Value       uint64         `json:"value"`
	Recipient   string         `json:"recipient"`
	ProofLink   string         `json:"proofLink"`
	RequestType string         `json:"requestType"`
}

func (t *CreateRequestTx) Params() (params types.RequestParams, err error) {
	recipient, err := ParseIdentity(t.Recipient)
	if err != nil {
		return params, err
	}
	params = types.RequestParams{
		Description: t.Description,
		Value:       t.Value,
		Recipient:   recipient,
		ProofLink:   t.ProofLink,
		RequestType: t.RequestType,
	}
	return
}

type ApproveRequestTx struct {
	Campaign common.Address `json:"campaign"`
	Request  uint64         `json:"request"`
}

type FinalizeRequestTx struct {
	Campaign common.Address `json:"campaign"`
	Request  uint64         `json:"request"`
}

// ParseIdentity accepts a 0x-prefixed or bare 40 digit hex address.
func ParseIdentity(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", types.ErrInvalidRecipient, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", types.ErrInvalidRecipient)
	}
	return addr, nil
}

type cfTxTmpl[Tx any] struct {
	Version uint8    `json:"version"`
	Type    CFTxType `json:"type"`
	Nonce   uint64   `json:"nonce"`
	Tx      Tx       `json:"tx"`
	Sig     []byte   `json:"sig"`
}

// SigHash is keccak256(chainId || envelope with an empty signature).
func (tx *CFTx) SigHash(chainId string) (h common.Hash, err error) {
	ntx := *tx
	ntx.Sig = nil
	dat, err := json.Marshal(ntx)
	if err != nil {
		return
	}
	h = crypto.Keccak256Hash([]byte(chainId), dat)
	return
}

func (tx *CFTx) Sign(key *ecdsa.PrivateKey, chainId string) error {
	h, err := tx.SigHash(chainId)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(h[:], key)
	if err != nil {
		return err
	}
	tx.Sig = sig
	return nil
}

// Sender recovers the signing identity. The sender is the actor of the
// operation carried by the tx.
func (tx *CFTx) Sender(chainId string) (addr common.Address, err error) {
	if len(tx.Sig) != CFTxSigLen {
		err = ErrMissingSig
		return
	}
	h, err := tx.SigHash(chainId)
	if err != nil {
		return
	}
	pub, err := crypto.SigToPub(h[:], tx.Sig)
	if err != nil {
		err = fmt.Errorf("%w: %v", types.ErrSigInvalid, err)
		return
	}
	addr = crypto.PubkeyToAddress(*pub)
	return
}

func parseCFTxType(dat []byte) CFTxType {
	var tx struct {
		Type CFTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return CFTxTypeUnknown
	}
	return tx.Type
}

func unmarshalCFTx[Tx any](dat []byte) (btx *CFTx, err error) {
	var txt cfTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidTx, err)
		return
	}
	if txt.Version > CFTxVersion1 {
		err = ErrUnsupportedTxVersion
		return
	}
	btx = new(CFTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalCFTx(dat []byte) (btx *CFTx, err error) {
	tp := parseCFTxType(dat)
	switch tp {
	case CFTxTypeCreateCampaign:
		return unmarshalCFTx[CreateCampaignTx](dat)
	case CFTxTypeContribute:
		return unmarshalCFTx[ContributeTx](dat)
	case CFTxTypeCreateRequest:
		return unmarshalCFTx[CreateRequestTx](dat)
	case CFTxTypeApproveRequest:
		return unmarshalCFTx[ApproveRequestTx](dat)
	case CFTxTypeFinalizeRequest:
		return unmarshalCFTx[FinalizeRequestTx](dat)
	default:
		err = fmt.Errorf("%w: %w", ErrInvalidTx, ErrUnsupportedTxType)
	}
	return
}

func MarshalCFTx(btx *CFTx) (dat []byte, err error) {
	return json.Marshal(btx)
}

// New builds an unsigned envelope, deriving the type from the payload.
func New(nonce uint64, payload any) (*CFTx, error) {
	btx := &CFTx{Version: CFTxVersion1, Nonce: nonce, Tx: payload}
	switch payload.(type) {
	case *CreateCampaignTx:
		btx.Type = CFTxTypeCreateCampaign
	case *ContributeTx:
		btx.Type = CFTxTypeContribute
	case *CreateRequestTx:
		btx.Type = CFTxTypeCreateRequest
	case *ApproveRequestTx:
		btx.Type = CFTxTypeApproveRequest
	case *FinalizeRequestTx:
		btx.Type = CFTxTypeFinalizeRequest
	default:
		return nil, ErrUnsupportedTxType
	}
	return btx, nil
}
