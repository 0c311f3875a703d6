package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/calehh/cfund-app/engine"
	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/rpc/client"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrUnknownResultCode = errors.New("unknown result code")

// Backend is the ledger as the gateway sees it: committed reads and a way to
// submit signed transactions.
type Backend interface {
	DeployedCampaigns(offset, limit uint64) ([]common.Address, uint64, error)
	Summary(campaign common.Address) (types.Summary, error)
	Request(campaign common.Address, index uint64) (*types.Request, error)
	Requests(campaign common.Address) ([]*types.Request, error)
	Contribution(campaign, who common.Address) (uint64, bool, error)
	Account(addr common.Address) (*state.Account, error)
	Submit(ctx context.Context, btx *tx.CFTx) (*TxResult, error)
}

type TxResult struct {
	Code   uint32        `json:"code"`
	Log    string        `json:"log,omitempty"`
	Data   hexutil.Bytes `json:"data,omitempty"`
	Hash   string        `json:"hash,omitempty"`
	Height int64         `json:"height,omitempty"`
}

// Err turns a failing result code back into its error kind.
func (r *TxResult) Err() error {
	if r.Code == types.CodeOK {
		return nil
	}
	kind := types.CodeError(r.Code)
	if kind == nil {
		return fmt.Errorf("%w %d: %s", ErrUnknownResultCode, r.Code, r.Log)
	}
	return fmt.Errorf("%w: %s", kind, r.Log)
}

func fromExec(res *abcitypes.ExecTxResult) *TxResult {
	return &TxResult{Code: res.Code, Log: res.Log, Data: res.Data}
}

// EngineBackend serves the gateway from a standalone engine.
type EngineBackend struct {
	*engine.Engine
}

var _ Backend = &EngineBackend{}

func (b *EngineBackend) Submit(ctx context.Context, btx *tx.CFTx) (*TxResult, error) {
	res, err := b.Apply(ctx, btx)
	if res == nil {
		return nil, err
	}
	return fromExec(res), nil
}

// ChainBackend reads committed state from the node's store and submits
// transactions through CometBFT RPC.
type ChainBackend struct {
	db  *state.StateDB
	cli client.Client
}

var _ Backend = &ChainBackend{}

func NewChainBackend(db *state.StateDB, cli client.Client) *ChainBackend {
	return &ChainBackend{db: db, cli: cli}
}

func (b *ChainBackend) DeployedCampaigns(offset, limit uint64) ([]common.Address, uint64, error) {
	return b.db.Campaigns(offset, limit)
}

func (b *ChainBackend) Summary(campaign common.Address) (types.Summary, error) {
	return b.db.Summary(campaign)
}

func (b *ChainBackend) Request(campaign common.Address, index uint64) (*types.Request, error) {
	return b.db.Request(campaign, index)
}

func (b *ChainBackend) Requests(campaign common.Address) ([]*types.Request, error) {
	return b.db.Requests(campaign)
}

func (b *ChainBackend) Contribution(campaign, who common.Address) (uint64, bool, error) {
	return b.db.Contribution(campaign, who)
}

func (b *ChainBackend) Account(addr common.Address) (*state.Account, error) {
	a, _, err := b.db.Account(addr)
	return a, err
}

// Submit broadcasts and waits for the tx to be committed in a block.
func (b *ChainBackend) Submit(ctx context.Context, btx *tx.CFTx) (*TxResult, error) {
	dat, err := tx.MarshalCFTx(btx)
	if err != nil {
		return nil, err
	}
	res, err := b.cli.BroadcastTxCommit(ctx, dat)
	if err != nil {
		return nil, err
	}
	if res.CheckTx.Code != types.CodeOK {
		return &TxResult{Code: res.CheckTx.Code, Log: res.CheckTx.Log, Hash: res.Hash.String()}, nil
	}
	r := fromExec(&res.TxResult)
	r.Hash = res.Hash.String()
	r.Height = res.Height
	return r, nil
}
