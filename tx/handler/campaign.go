package handler

import (
	"context"

	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type CreateCampaignTxHandler struct {
	logger cmtlog.Logger
}

func NewCreateCampaignTxHandler(logger cmtlog.Logger) (h *CreateCampaignTxHandler) {
	h = &CreateCampaignTxHandler{
		logger: logger.With("module", "createCampaignTx"),
	}
	return
}

func (h *CreateCampaignTxHandler) Check(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ResponseCheckTx, err error) {
	wtx, err := payload[tx.CreateCampaignTx](btx)
	if err != nil {
		return nil, err
	}
	_, err1 := st.CreateCampaign(env.Sender, wtx.Params, env.Now, true)
	return checkResult(h.logger, err1), nil
}

func (h *CreateCampaignTxHandler) Exec(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ExecTxResult, err error) {
	wtx, err := payload[tx.CreateCampaignTx](btx)
	if err != nil {
		return nil, err
	}
	event, err := st.CreateCampaign(env.Sender, wtx.Params, env.Now, false)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Data:   event.Campaign.Bytes(),
		Events: []abcitypes.Event{types.EncodeEventCreateCampaign(event)},
	}
	return
}

type ContributeTxHandler struct {
	logger cmtlog.Logger
}

func NewContributeTxHandler(logger cmtlog.Logger) (h *ContributeTxHandler) {
	h = &ContributeTxHandler{
		logger: logger.With("module", "contributeTx"),
	}
	return
}

func (h *ContributeTxHandler) Check(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ResponseCheckTx, err error) {
	wtx, err := payload[tx.ContributeTx](btx)
	if err != nil {
		return nil, err
	}
	_, err1 := st.Contribute(ctx, env.Custody, wtx.Campaign, env.Sender, wtx.Amount, env.Now, true)
	return checkResult(h.logger, err1), nil
}

func (h *ContributeTxHandler) Exec(ctx context.Context, st *state.State, btx *tx.CFTx, env Env) (res *abcitypes.ExecTxResult, err error) {
	wtx, err := payload[tx.ContributeTx](btx)
	if err != nil {
		return nil, err
	}
	event, err := st.Contribute(ctx, env.Custody, wtx.Campaign, env.Sender, wtx.Amount, env.Now, false)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventContribute(event)},
	}
	return
}
