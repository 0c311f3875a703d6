package custody

import (
	"context"
	"fmt"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	KeyWallet  = "w%x"
	KeyEscrow  = "e%x"
	KeyReject  = "x%x"
	KeyJournal = "j"
)

// journal is a prepared batch waiting for the state version it belongs to.
type journal struct {
	Version uint64
	Batch   []byte
}

// Ledger is a wallet and escrow book kept in goleveldb. Movements are staged
// in a LedgerTx and written as one batch. Only one LedgerTx is open at a time.
//
// A LedgerTx paired with a state version is first written as a journal
// (Prepare) and applied after the version is saved (Commit). Recover settles
// a journal left behind by a crash between the two.
type Ledger struct {
	mtx sync.Mutex

	logger cmtlog.Logger
	db     *leveldb.DB
}

func OpenLedger(dir string, logger cmtlog.Logger) (*Ledger, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return newLedger(db, logger), nil
}

func NewMemLedger(logger cmtlog.Logger) (*Ledger, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return newLedger(db, logger), nil
}

func newLedger(db *leveldb.DB, logger cmtlog.Logger) *Ledger {
	return &Ledger{
		logger: logger.With("module", "custody"),
		db:     db,
	}
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) getUint(key string) (v uint64, err error) {
	val, err := l.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	err = rlp.DecodeBytes(val, &v)
	return
}

func (l *Ledger) Balance(addr common.Address) (uint64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.getUint(fmt.Sprintf(KeyWallet, addr))
}

func (l *Ledger) Escrow(campaign common.Address) (uint64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.getUint(fmt.Sprintf(KeyEscrow, campaign))
}

// Deposit credits a wallet from outside the ledger.
func (l *Ledger) Deposit(addr common.Address, amount uint64) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	key := fmt.Sprintf(KeyWallet, addr)
	bal, err := l.getUint(key)
	if err != nil {
		return err
	}
	if bal+amount < bal {
		return ErrOverflow
	}
	val, err := rlp.EncodeToBytes(bal + amount)
	if err != nil {
		return err
	}
	l.logger.Info("deposit", "addr", addr.Hex(), "amount", amount)
	return l.db.Put([]byte(key), val, &opt.WriteOptions{Sync: true})
}

// Reject marks an identity as refusing payouts.
func (l *Ledger) Reject(addr common.Address, reject bool) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	key := []byte(fmt.Sprintf(KeyReject, addr))
	if reject {
		return l.db.Put(key, []byte{1}, nil)
	}
	return l.db.Delete(key, nil)
}

func (l *Ledger) rejected(addr common.Address) (bool, error) {
	return l.db.Has([]byte(fmt.Sprintf(KeyReject, addr)), nil)
}

// Wallets lists every funded wallet.
func (l *Ledger) Wallets() (map[common.Address]uint64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	res := make(map[common.Address]uint64)
	it := l.db.NewIterator(util.BytesPrefix([]byte("w")), nil)
	defer it.Release()
	for it.Next() {
		var v uint64
		if err := rlp.DecodeBytes(it.Value(), &v); err != nil {
			return nil, err
		}
		addr := common.HexToAddress(string(it.Key()[1:]))
		res[addr] = v
	}
	return res, it.Error()
}

// Recover applies a journal whose state version was saved and drops one
// whose version was not. It reports whether movements were replayed.
func (l *Ledger) Recover(saved int64) (bool, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	val, err := l.db.Get([]byte(KeyJournal), nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var j journal
	if err = rlp.DecodeBytes(val, &j); err != nil {
		return false, fmt.Errorf("decode custody journal: %w", err)
	}
	if saved < 0 || j.Version > uint64(saved) {
		l.logger.Info("drop custody journal", "version", j.Version, "saved", saved)
		return false, l.db.Delete([]byte(KeyJournal), &opt.WriteOptions{Sync: true})
	}
	batch := new(leveldb.Batch)
	if err = batch.Load(j.Batch); err != nil {
		return false, fmt.Errorf("load custody journal: %w", err)
	}
	batch.Delete([]byte(KeyJournal))
	l.logger.Info("replay custody journal", "version", j.Version, "saved", saved, "records", batch.Len())
	if err = l.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return false, err
	}
	return true, nil
}

// Begin opens a staged transaction. It blocks while another is open; callers
// must Commit or Discard.
func (l *Ledger) Begin() *LedgerTx {
	l.mtx.Lock()
	return &LedgerTx{
		l:     l,
		batch: new(leveldb.Batch),
		dirty: make(map[string]uint64),
	}
}

type LedgerTx struct {
	l        *Ledger
	batch    *leveldb.Batch
	dirty    map[string]uint64
	prepared bool
	done     bool
}

func (t *LedgerTx) get(key string) (uint64, error) {
	if v, ok := t.dirty[key]; ok {
		return v, nil
	}
	return t.l.getUint(key)
}

func (t *LedgerTx) put(key string, v uint64) error {
	val, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	t.dirty[key] = v
	t.batch.Put([]byte(key), val)
	return nil
}

func (t *LedgerTx) Collect(ctx context.Context, campaign, from common.Address, amount uint64) error {
	if t.done {
		return ErrClosed
	}
	walletKey := fmt.Sprintf(KeyWallet, from)
	escrowKey := fmt.Sprintf(KeyEscrow, campaign)
	bal, err := t.get(walletKey)
	if err != nil {
		return err
	}
	if bal < amount {
		return ErrInsufficientFunds
	}
	escrow, err := t.get(escrowKey)
	if err != nil {
		return err
	}
	if escrow+amount < escrow {
		return ErrOverflow
	}
	if err = t.put(walletKey, bal-amount); err != nil {
		return err
	}
	return t.put(escrowKey, escrow+amount)
}

func (t *LedgerTx) Transfer(ctx context.Context, campaign, to common.Address, amount uint64) error {
	if t.done {
		return ErrClosed
	}
	rejected, err := t.l.rejected(to)
	if err != nil {
		return err
	}
	if rejected {
		return ErrRecipientRejected
	}
	walletKey := fmt.Sprintf(KeyWallet, to)
	escrowKey := fmt.Sprintf(KeyEscrow, campaign)
	escrow, err := t.get(escrowKey)
	if err != nil {
		return err
	}
	if escrow < amount {
		return ErrEscrowShort
	}
	bal, err := t.get(walletKey)
	if err != nil {
		return err
	}
	if bal+amount < bal {
		return ErrOverflow
	}
	if err = t.put(escrowKey, escrow-amount); err != nil {
		return err
	}
	return t.put(walletKey, bal+amount)
}

// Prepare durably records the staged movements as the journal of a state
// version without applying them. The journal replaces any earlier one.
func (t *LedgerTx) Prepare(version int64) error {
	if t.done {
		return ErrClosed
	}
	if version <= 0 {
		return fmt.Errorf("invalid journal version %d", version)
	}
	val, err := rlp.EncodeToBytes(&journal{Version: uint64(version), Batch: t.batch.Dump()})
	if err != nil {
		return err
	}
	if err = t.l.db.Put([]byte(KeyJournal), val, &opt.WriteOptions{Sync: true}); err != nil {
		return err
	}
	t.prepared = true
	return nil
}

// Commit applies the staged movements and clears the journal in one write.
// If it fails after Prepare the journal stays for Recover.
func (t *LedgerTx) Commit() error {
	if t.done {
		return ErrClosed
	}
	t.done = true
	defer t.l.mtx.Unlock()
	if t.prepared {
		t.batch.Delete([]byte(KeyJournal))
	}
	if t.batch.Len() == 0 {
		return nil
	}
	return t.l.db.Write(t.batch, &opt.WriteOptions{Sync: true})
}

// Discard drops staged movements and a prepared journal. It is a no-op
// after Commit.
func (t *LedgerTx) Discard() {
	if t.done {
		return
	}
	t.done = true
	defer t.l.mtx.Unlock()
	if t.prepared {
		if err := t.l.db.Delete([]byte(KeyJournal), &opt.WriteOptions{Sync: true}); err != nil {
			t.l.logger.Error("drop custody journal fail", "err", err)
		}
	}
}
