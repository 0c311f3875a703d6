package app

import (
	"context"

	"github.com/calehh/cfund-app/config"
	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/tx/handler"
	"github.com/calehh/cfund-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
)

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
	Time   int64
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
	b.Time = blk.Time.Unix()
}

var _ abcitypes.Application = &CFundApp{}

// CFundApp runs the crowdfunding ledger as a CometBFT application. Consensus
// supplies the total order of transactions and the block time.
type CFundApp struct {
	cfg    *config.AppConfig
	logger cmtlog.Logger

	db       *state.StateDB
	lastBlk  finalizeBlock
	txHdlrs  handler.Handlers
	queriers map[string]Querier

	st *state.State
}

func NewCFundApp(cfg *config.AppConfig, logger cmtlog.Logger) (app *CFundApp, err error) {
	db, err := state.NewStateDB(cfg.StatePath(), logger)
	if err != nil {
		return nil, err
	}
	return NewCFundAppWithDB(cfg, db, logger), nil
}

func NewCFundAppWithDB(cfg *config.AppConfig, db *state.StateDB, logger cmtlog.Logger) (app *CFundApp) {
	logger = logger.With("module", "app")
	app = &CFundApp{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		txHdlrs:  handler.NewHandlers(logger),
		queriers: make(map[string]Querier),
	}
	app.registerQuerier()
	return
}

func (app *CFundApp) DB() *state.StateDB {
	return app.db
}

func (app *CFundApp) Start(bs *store.BlockStore) {
	height := app.db.Header().Height
	if height > 0 {
		blk := bs.LoadBlock(int64(height))
		if blk == nil {
			panic("unexpected BlockStore")
		}
		app.lastBlk.Height = height
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
		app.lastBlk.Time = blk.Time.Unix()
	}
}

func (app *CFundApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("cfund app stopped")
}

func (app *CFundApp) registerQuerier() {
	app.queriers["/accounts/"] = NewAccountQuerier(app.db, app.logger)
	app.queriers["/campaigns/"] = NewCampaignsQuerier(app.db, app.logger)
	app.queriers["/campaign/"] = NewCampaignQuerier(app.db, app.logger)
	app.queriers["/request/"] = NewRequestQuerier(app.db, app.logger)
	app.queriers["/requests/"] = NewRequestsQuerier(app.db, app.logger)
	app.queriers["/contributor/"] = NewContributorQuerier(app.db, app.logger)
}

func (app *CFundApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	if header := app.db.Header(); header.Hash != nil {
		app.logger.Info("InitChain on initialized state", "chainId", header.ChainId)
		return &abcitypes.ResponseInitChain{AppHash: header.Hash}, nil
	}
	genesis, err := types.ParseGenesisAppState(chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain parse app state fail", "err", err)
		return nil, err
	}
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	for _, a := range genesis.Accounts {
		err = st.AddAccount(a.Address, a.Balance)
		if err != nil {
			app.logger.Error("InitChain add account fail", "err", err)
			return nil, err
		}
	}
	var h common.Hash
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err = app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.logger.Info("InitChain", "chainId", chain.ChainId, "accounts", len(genesis.Accounts))
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *CFundApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		Data:             types.CFundModuleName,
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *CFundApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *CFundApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *CFundApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *CFundApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *CFundApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *CFundApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
