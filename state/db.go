package state

import (
	"sync"

	"github.com/calehh/cfund-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
)

// StateDB owns the ledger tree. It hands out working States to the single
// writer and serves reads from the last committed version.
type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	ldb    dbm.DB
	db     *iavl.MutableTree
	view   *iavl.ImmutableTree

	state *State
}

func NewStateDB(dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	ldb, err := dbm.NewDB("cfund", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	return openStateDB(ldb, dir, logger)
}

// NewMemStateDB keeps the tree in memory.
func NewMemStateDB(logger cmtlog.Logger) (db *StateDB, err error) {
	return openStateDB(dbm.NewMemDB(), "", logger)
}

func openStateDB(ldb dbm.DB, dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "cfunddb")
	tdb := iavl.NewMutableTree(ldb, 128, true, newTreeLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, logger)
	st.dbVer = version
	err = st.load()
	if err != nil {
		logger.Error("from cfunddb load fail", "err", err)
		return nil, err
	}
	db = &StateDB{
		dir:    dir,
		logger: logger,
		ldb:    ldb,
		db:     tdb,
		state:  st,
	}
	if err = db.refreshView(version); err != nil {
		return nil, err
	}
	return
}

func (db *StateDB) refreshView(version int64) (err error) {
	if version == 0 {
		db.view = nil
		return
	}
	db.view, err = db.db.GetImmutable(version)
	return
}

func (db *StateDB) reader() kvReader {
	if db.view == nil {
		return emptyReader{}
	}
	return db.view
}

// Close releases the tree and its backing store. The tree leaves the store
// open on its own.
func (db *StateDB) Close() (err error) {
	if err = db.db.Close(); err != nil {
		return
	}
	err = db.ldb.Close()
	return
}

func (db *StateDB) Header() (header *StateHeader) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header().Clone()
	return
}

func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

func (db *StateDB) NewState() (st *State) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st = db.state.nextState()
	return
}

// SetState saves the working tree as a new version and makes st the current
// state. st must have been flushed with Update.
func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err = st.save()
	if err != nil {
		return
	}
	db.state = st
	err = db.refreshView(st.dbVer)
	return
}

// Discard drops unsaved writes in the working tree.
func (db *StateDB) Discard() {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	db.db.Rollback()
}

// Version is the last saved tree version, 0 before the first save.
func (db *StateDB) Version() int64 {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state.dbVer
}

func (db *StateDB) Height() uint64 {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state.header.Height
}

func (db *StateDB) Campaign(addr common.Address) (c *types.Campaign, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	height = db.state.header.Height
	c, err = readCampaign(db.reader(), addr)
	if err != nil {
		return
	}
	if c == nil {
		err = types.ErrCampaignNotFound
	}
	return
}

func (db *StateDB) Summary(addr common.Address) (sum types.Summary, err error) {
	c, _, err := db.Campaign(addr)
	if err != nil {
		return
	}
	sum = c.Summary()
	return
}

// Campaigns lists campaign addresses in creation order. A zero limit means
// no limit.
func (db *StateDB) Campaigns(offset, limit uint64) (res []common.Address, total uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	r := db.reader()
	h, err := readHeader(r)
	if err != nil || h == nil {
		return
	}
	total = h.Campaigns
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	for i := offset; i < end; i++ {
		addr, err := readCampaignAt(r, i)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, addr)
	}
	return
}

func (db *StateDB) Request(campaign common.Address, index uint64) (req *types.Request, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	r := db.reader()
	c, err := readCampaign(r, campaign)
	if err != nil {
		return
	}
	if c == nil {
		err = types.ErrCampaignNotFound
		return
	}
	req, err = readRequest(r, campaign, index)
	if err != nil {
		return
	}
	if req == nil {
		err = types.ErrRequestNotFound
	}
	return
}

func (db *StateDB) Requests(campaign common.Address) (res []*types.Request, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	r := db.reader()
	c, err := readCampaign(r, campaign)
	if err != nil {
		return
	}
	if c == nil {
		err = types.ErrCampaignNotFound
		return
	}
	res = make([]*types.Request, 0, c.RequestsCount)
	for i := uint64(0); i < c.RequestsCount; i++ {
		req, err := readRequest(r, campaign, i)
		if err != nil {
			return nil, err
		}
		if req == nil {
			return nil, types.ErrRequestNotFound
		}
		res = append(res, req)
	}
	return
}

// Contribution reports registry membership and the cumulative amount
// contributed. An unknown campaign is an error, an unknown identity is not.
func (db *StateDB) Contribution(campaign, who common.Address) (amount uint64, member bool, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	r := db.reader()
	c, err := readCampaign(r, campaign)
	if err != nil {
		return
	}
	if c == nil {
		err = types.ErrCampaignNotFound
		return
	}
	return readContribution(r, campaign, who)
}

func (db *StateDB) IsContributor(campaign, who common.Address) (bool, error) {
	_, member, err := db.Contribution(campaign, who)
	return member, err
}

func (db *StateDB) Account(addr common.Address) (acnt *Account, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	height = db.state.header.Height
	acnt, err = readAccount(db.reader(), addr)
	if err != nil {
		return
	}
	if acnt == nil {
		acnt = &Account{Address: addr}
	}
	return
}
