package handler

import (
	"context"
	"fmt"

	"github.com/calehh/cfund-app/custody"
	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

// Env is what a handler needs besides the tx: the recovered sender, the
// custody that moves the funds and the time to stamp records with.
type Env struct {
	Sender  common.Address
	Custody custody.Custody
	Now     int64
}

type TxHandler interface {
	Check(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ResponseCheckTx, err error)
	Exec(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ExecTxResult, err error)
}

type Handlers map[tx.CFTxType]TxHandler

func NewHandlers(logger cmtlog.Logger) Handlers {
	return Handlers{
		tx.CFTxTypeCreateCampaign:  NewCreateCampaignTxHandler(logger),
		tx.CFTxTypeContribute:      NewContributeTxHandler(logger),
		tx.CFTxTypeCreateRequest:   NewCreateRequestTxHandler(logger),
		tx.CFTxTypeApproveRequest:  NewApproveRequestTxHandler(logger),
		tx.CFTxTypeFinalizeRequest: NewFinalizeRequestTxHandler(logger),
	}
}

func (hs Handlers) get(btx *tx.CFTx) (TxHandler, error) {
	h, ok := hs[btx.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %w", tx.ErrInvalidTx, tx.ErrUnsupportedTxType)
	}
	return h, nil
}

// payload asserts the decoded body matches the envelope type.
func payload[T any](btx *tx.CFTx) (*T, error) {
	wtx, ok := btx.Tx.(*T)
	if !ok {
		return nil, fmt.Errorf("%w: %v body is %T", tx.ErrInvalidTx, btx.Type, btx.Tx)
	}
	return wtx, nil
}

func (hs Handlers) Check(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ResponseCheckTx, err error) {
	h, err := hs.get(btx)
	if err != nil {
		return nil, err
	}
	return h.Check(ctx, st, btx, env)
}

func (hs Handlers) Exec(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ExecTxResult, err error) {
	h, err := hs.get(btx)
	if err != nil {
		return nil, err
	}
	return h.Exec(ctx, st, btx, env)
}

func checkResult(logger cmtlog.Logger, err error) *abcitypes.ResponseCheckTx {
	res := &abcitypes.ResponseCheckTx{Code: types.CodeOK}
	if err != nil {
		logger.Info("CheckTx fail", "err", err)
		res.Code = types.ErrorCode(err)
		res.Log = err.Error()
	}
	return res
}
