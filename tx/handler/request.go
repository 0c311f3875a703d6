package handler

import (
	"context"
	"encoding/binary"

	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type CreateRequestTxHandler struct {
	logger cmtlog.Logger
}

func NewCreateRequestTxHandler(logger cmtlog.Logger) (h *CreateRequestTxHandler) {
	h = &CreateRequestTxHandler{
		logger: logger.With("module", "createRequestTx"),
	}
	return
}

func (h *CreateRequestTxHandler) Check(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ResponseCheckTx, err error) {
	wtx, err := payload[tx.CreateRequestTx](btx)
	if err != nil {
		return nil, err
	}
	params, err1 := wtx.Params()
	if err1 == nil {
		_, err1 = st.CreateRequest(env.Sender, wtx.Campaign, params, env.Now, true)
	}
	return checkResult(h.logger, err1), nil
}

func (h *CreateRequestTxHandler) Exec(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ExecTxResult, err error) {
	wtx, err := payload[tx.CreateRequestTx](btx)
	if err != nil {
		return nil, err
	}
	params, err := wtx.Params()
	if err != nil {
		return nil, err
	}
	event, err := st.CreateRequest(env.Sender, wtx.Campaign, params, env.Now, false)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Data:   binary.BigEndian.AppendUint64(nil, event.Request),
		Events: []abcitypes.Event{types.EncodeEventCreateRequest(event)},
	}
	return
}

type ApproveRequestTxHandler struct {
	logger cmtlog.Logger
}

func NewApproveRequestTxHandler(logger cmtlog.Logger) (h *ApproveRequestTxHandler) {
	h = &ApproveRequestTxHandler{
		logger: logger.With("module", "approveRequestTx"),
	}
	return
}

func (h *ApproveRequestTxHandler) Check(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ResponseCheckTx, err error) {
	wtx, err := payload[tx.ApproveRequestTx](btx)
	if err != nil {
		return nil, err
	}
	_, err1 := st.ApproveRequest(env.Sender, wtx.Campaign, wtx.Request, true)
	return checkResult(h.logger, err1), nil
}

func (h *ApproveRequestTxHandler) Exec(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ExecTxResult, err error) {
	wtx, err := payload[tx.ApproveRequestTx](btx)
	if err != nil {
		return nil, err
	}
	event, err := st.ApproveRequest(env.Sender, wtx.Campaign, wtx.Request, false)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventApproveRequest(event)},
	}
	return
}

type FinalizeRequestTxHandler struct {
	logger cmtlog.Logger
}

func NewFinalizeRequestTxHandler(logger cmtlog.Logger) (h *FinalizeRequestTxHandler) {
	h = &FinalizeRequestTxHandler{
		logger: logger.With("module", "finalizeRequestTx"),
	}
	return
}

func (h *FinalizeRequestTxHandler) Check(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ResponseCheckTx, err error) {
	wtx, err := payload[tx.FinalizeRequestTx](btx)
	if err != nil {
		return nil, err
	}
	_, err1 := st.FinalizeRequest(ctx, env.Custody, env.Sender, wtx.Campaign, wtx.Request, env.Now, true)
	return checkResult(h.logger, err1), nil
}

func (h *FinalizeRequestTxHandler) Exec(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ExecTxResult, err error) {
	wtx, err := payload[tx.FinalizeRequestTx](btx)
	if err != nil {
		return nil, err
	}
	event, err := st.FinalizeRequest(ctx, env.Custody, env.Sender, wtx.Campaign, wtx.Request, env.Now, false)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventFinalizeRequest(event)},
	}
	return
}
