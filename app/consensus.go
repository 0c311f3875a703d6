package app

import (
	"context"
	"errors"

	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/tx/handler"
	"github.com/calehh/cfund-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

var (
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
	ErrNoPendingState      = errors.New("commit without finalized block")
)

func (app *CFundApp) getState() (st *state.State) {
	st = app.db.NewState()
	app.st = st
	return
}

func (app *CFundApp) parseTx(txDat []byte, st *state.State, allowNonceGap bool) (btx *tx.CFTx, env handler.Env, err error) {
	btx, err = tx.UnmarshalCFTx(txDat)
	if err != nil {
		return
	}
	env.Sender, err = st.Verify(btx, allowNonceGap)
	return
}

// deliver applies one tx on a copy of st. A tx that cannot be verified is
// returned as an error. A verified tx always consumes its nonce; when the
// operation is rejected its result carries the error code and no other
// change survives.
func (app *CFundApp) deliver(ctx context.Context, st *state.State, stx []byte, now int64) (next *state.State, res *abcitypes.ExecTxResult, err error) {
	btx, env, err := app.parseTx(stx, st, false)
	if err != nil {
		return nil, nil, err
	}
	next = st.Clone()
	env.Custody = next.Custody()
	env.Now = now
	res, err1 := app.txHdlrs.Exec(ctx, next, btx, env)
	if err1 != nil {
		app.logger.Debug("tx rejected", "type", btx.Type, "sender", env.Sender.Hex(), "err", err1)
		next = st
		res = &abcitypes.ExecTxResult{Code: types.ErrorCode(err1), Log: err1.Error()}
	}
	if err = next.IncNonce(env.Sender); err != nil {
		return nil, nil, err
	}
	return next, res, nil
}

func (app *CFundApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: types.CodeOK}
	st := app.db.NewState()
	btx, env, err := app.parseTx(check.Tx, st, true)
	if err != nil {
		app.logger.Info("parse tx fail", "err", err)
		res.Code = types.ErrorCode(err)
		res.Log = err.Error()
		err = nil
		return
	}
	app.logger.Debug("check tx", "type", btx.Type, "sender", env.Sender.Hex())
	env.Custody = st.Custody()
	env.Now = app.lastBlk.Time
	res, err = app.txHdlrs.Check(ctx, st, btx, env)
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res = &abcitypes.ResponseCheckTx{Code: types.ErrorCode(err), Log: err.Error()}
		err = nil
	}
	return
}

func (app *CFundApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	app.logger.Info("PrepareProposal", "height", proposal.Height, "txs", len(proposal.Txs))
	st := app.db.NewState()
	now := proposal.Time.Unix()
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, stx := range proposal.Txs {
		if size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		next, _, err := app.deliver(ctx, st, stx, now)
		if err != nil {
			app.logger.Info("drop unverifiable tx", "err", err)
			continue
		}
		st = next
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *CFundApp) process(ctx context.Context, st *state.State, txs [][]byte, now int64) (_ *state.State, res []*abcitypes.ExecTxResult, err error) {
	res = make([]*abcitypes.ExecTxResult, len(txs))
	for i, stx := range txs {
		next, result, err := app.deliver(ctx, st, stx, now)
		if err != nil {
			app.logger.Error("unexpected tx, verify fail", "index", i, "err", err)
			return nil, nil, ErrUnexpectedTxProcess
		}
		st = next
		res[i] = result
	}
	return st, res, nil
}

func (app *CFundApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	app.logger.Info("ProcessProposal", "height", proposal.Height)
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	if len(proposal.Txs) == 0 {
		res.Status = abcitypes.ResponseProcessProposal_ACCEPT
		return res, nil
	}
	_, _, err = app.process(ctx, app.db.NewState(), proposal.Txs, proposal.Time.Unix())
	if err != nil {
		app.logger.Error("process fail", "err", err)
		return res, nil
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	return res, nil
}

// FinalizeBlock executes the decided block. Unlike proposal processing it
// never fails the block on a bad tx; such a tx gets a failing result and
// leaves the state untouched.
func (app *CFundApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs))
	app.lastBlk.Set(req)
	st := app.getState()
	now := req.Time.Unix()
	res := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		next, result, err := app.deliver(ctx, st, stx, now)
		if err != nil {
			app.logger.Error("finalize unverifiable tx", "index", i, "err", err)
			res[i] = &abcitypes.ExecTxResult{Code: types.ErrorCode(err), Log: err.Error()}
			continue
		}
		st = next
		res[i] = result
	}
	app.st = st
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *CFundApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return nil, ErrNoPendingState
	}
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.st = nil
	app.logger.Info("Commit", "height", app.lastBlk.Height)
	return &abcitypes.ResponseCommit{}, nil
}
