package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/calehh/cfund-app/custody"
	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/tx/handler"
	"github.com/calehh/cfund-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

// Engine applies ledger operations one at a time against the state store and
// the custody ledger. An operation either commits to both or to neither: the
// custody batch is journaled, the state version saved, then the batch
// applied. A journal left by a crash is settled when the engine is opened.
type Engine struct {
	mtx   sync.Mutex
	fault error

	logger  cmtlog.Logger
	db      *state.StateDB
	ledger  *custody.Ledger
	hdlrs   handler.Handlers
	chainId string
	now     func() time.Time
}

type Option func(*Engine)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithChainId(chainId string) Option {
	return func(e *Engine) {
		e.chainId = chainId
	}
}

func New(db *state.StateDB, ledger *custody.Ledger, logger cmtlog.Logger, opts ...Option) (*Engine, error) {
	logger = logger.With("module", "engine")
	e := &Engine{
		logger: logger,
		db:     db,
		ledger: ledger,
		hdlrs:  handler.NewHandlers(logger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.chainId == "" {
		e.chainId = db.Header().ChainId
	}
	replayed, err := ledger.Recover(db.Version())
	if err != nil {
		return nil, fmt.Errorf("recover custody: %w", err)
	}
	if replayed {
		logger.Info("custody caught up with state", "version", db.Version())
	}
	return e, nil
}

func (e *Engine) ChainId() string {
	return e.chainId
}

func (e *Engine) Close() error {
	if err := e.ledger.Close(); err != nil {
		return err
	}
	return e.db.Close()
}

// run executes op against a fresh snapshot and a staged custody transaction.
func (e *Engine) run(ctx context.Context, op func(st *state.State, cust custody.Custody, now int64) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.fault != nil {
		return e.fault
	}

	st := e.db.NewState()
	st.SetChainId(e.chainId)
	lt := e.ledger.Begin()
	defer lt.Discard()

	if err := op(st, lt, e.now().Unix()); err != nil {
		e.logger.Debug("operation rejected", "err", err)
		return err
	}
	return e.commit(st, lt)
}

func (e *Engine) commit(st *state.State, lt *custody.LedgerTx) error {
	if _, err := st.Update(); err != nil {
		e.logger.Error("state update fail", "err", err)
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	version := e.db.Version() + 1
	if err := lt.Prepare(version); err != nil {
		e.db.Discard()
		e.logger.Error("custody prepare fail", "err", err)
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	if _, err := e.db.SetState(st); err != nil {
		if e.db.Version() < version {
			e.db.Discard()
			e.logger.Error("state save fail", "version", version, "err", err)
			return fmt.Errorf("%w: %v", types.ErrStorage, err)
		}
		e.logger.Error("state view refresh fail", "version", version, "err", err)
	}
	if err := lt.Commit(); err != nil {
		e.logger.Error("custody commit fail", "version", version, "err", err)
		if replayed, err1 := e.ledger.Recover(version); err1 != nil || !replayed {
			e.fault = fmt.Errorf("%w: custody behind state version %d: %v", types.ErrStorage, version, err)
			e.logger.Error("custody replay fail", "version", version, "err", err1)
			return e.fault
		}
	}
	return nil
}

func (e *Engine) CreateCampaign(ctx context.Context, manager common.Address, params types.CampaignParams) (addr common.Address, err error) {
	err = e.run(ctx, func(st *state.State, _ custody.Custody, now int64) error {
		event, err := st.CreateCampaign(manager, params, now, false)
		if err != nil {
			return err
		}
		addr = event.Campaign
		return nil
	})
	return
}

func (e *Engine) Contribute(ctx context.Context, campaign, contributor common.Address, amount uint64) error {
	return e.run(ctx, func(st *state.State, cust custody.Custody, now int64) error {
		_, err := st.Contribute(ctx, cust, campaign, contributor, amount, now, false)
		return err
	})
}

func (e *Engine) CreateRequest(ctx context.Context, actor, campaign common.Address, params types.RequestParams) (index uint64, err error) {
	err = e.run(ctx, func(st *state.State, _ custody.Custody, now int64) error {
		event, err := st.CreateRequest(actor, campaign, params, now, false)
		if err != nil {
			return err
		}
		index = event.Request
		return nil
	})
	return
}

func (e *Engine) ApproveRequest(ctx context.Context, actor, campaign common.Address, index uint64) error {
	return e.run(ctx, func(st *state.State, _ custody.Custody, _ int64) error {
		_, err := st.ApproveRequest(actor, campaign, index, false)
		return err
	})
}

func (e *Engine) FinalizeRequest(ctx context.Context, actor, campaign common.Address, index uint64) error {
	return e.run(ctx, func(st *state.State, cust custody.Custody, now int64) error {
		_, err := st.FinalizeRequest(ctx, cust, actor, campaign, index, now, false)
		return err
	})
}

// Apply executes a signed envelope. The sender nonce is consumed even when
// the operation itself is rejected, so a failed tx cannot be replayed.
func (e *Engine) Apply(ctx context.Context, btx *tx.CFTx) (res *abcitypes.ExecTxResult, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.fault != nil {
		return nil, e.fault
	}

	st := e.db.NewState()
	st.SetChainId(e.chainId)
	sender, err := st.Verify(btx, false)
	if err != nil {
		return
	}
	lt := e.ledger.Begin()
	defer func() { lt.Discard() }()

	stTmp := st.Clone()
	env := handler.Env{Sender: sender, Custody: lt, Now: e.now().Unix()}
	res, err = e.hdlrs.Exec(ctx, stTmp, btx, env)
	if err != nil {
		e.logger.Debug("tx rejected", "type", btx.Type, "sender", sender.Hex(), "err", err)
		lt.Discard()
		lt = e.ledger.Begin()
		res = &abcitypes.ExecTxResult{Code: types.ErrorCode(err), Log: err.Error()}
	} else {
		st = stTmp
	}
	if err1 := st.IncNonce(sender); err1 != nil {
		return nil, err1
	}
	if err1 := e.commit(st, lt); err1 != nil {
		return nil, err1
	}
	return
}

// Nonce returns the next nonce an identity must sign with.
func (e *Engine) Nonce(addr common.Address) (uint64, error) {
	a, _, err := e.db.Account(addr)
	if err != nil {
		return 0, err
	}
	return a.Nonce, nil
}

func (e *Engine) Summary(campaign common.Address) (types.Summary, error) {
	return e.db.Summary(campaign)
}

func (e *Engine) Campaign(campaign common.Address) (*types.Campaign, error) {
	c, _, err := e.db.Campaign(campaign)
	return c, err
}

func (e *Engine) Request(campaign common.Address, index uint64) (*types.Request, error) {
	return e.db.Request(campaign, index)
}

func (e *Engine) Requests(campaign common.Address) ([]*types.Request, error) {
	return e.db.Requests(campaign)
}

func (e *Engine) IsContributor(campaign, who common.Address) (bool, error) {
	return e.db.IsContributor(campaign, who)
}

func (e *Engine) Contribution(campaign, who common.Address) (uint64, bool, error) {
	return e.db.Contribution(campaign, who)
}

// DeployedCampaigns lists campaign addresses in creation order.
func (e *Engine) DeployedCampaigns(offset, limit uint64) ([]common.Address, uint64, error) {
	return e.db.Campaigns(offset, limit)
}

// Account reports the custody wallet balance and the signing nonce.
func (e *Engine) Account(addr common.Address) (*state.Account, error) {
	a, _, err := e.db.Account(addr)
	if err != nil {
		return nil, err
	}
	a.Balance, err = e.ledger.Balance(addr)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Fund credits a custody wallet.
func (e *Engine) Fund(addr common.Address, amount uint64) error {
	return e.ledger.Deposit(addr, amount)
}
