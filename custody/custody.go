package custody

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRecipientRejected = errors.New("recipient rejected transfer")
	ErrEscrowShort       = errors.New("escrow short of transfer amount")
	ErrOverflow          = errors.New("balance overflow")
	ErrClosed            = errors.New("custody transaction closed")
)

// Custody holds and moves the funds backing campaign balances. Calls are
// synchronous: a nil error means the movement happened in the caller's
// transaction, any error means nothing moved.
type Custody interface {
	// Collect moves a contribution from the contributor into the campaign escrow.
	Collect(ctx context.Context, campaign, from common.Address, amount uint64) error
	// Transfer pays a finalized request out of the campaign escrow.
	Transfer(ctx context.Context, campaign, to common.Address, amount uint64) error
}

var _ Custody = &Mock{}
var _ Custody = &LedgerTx{}

type Transfer struct {
	Campaign common.Address
	To       common.Address
	Amount   uint64
}

type Collection struct {
	Campaign common.Address
	From     common.Address
	Amount   uint64
}

// Mock records every movement and fails on demand.
type Mock struct {
	mtx sync.Mutex

	Collections []Collection
	Transfers   []Transfer

	CollectErr  error
	TransferErr error
	Rejected    map[common.Address]bool
}

func NewMock() *Mock {
	return &Mock{
		Rejected: make(map[common.Address]bool),
	}
}

func (m *Mock) Collect(ctx context.Context, campaign, from common.Address, amount uint64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.CollectErr != nil {
		return m.CollectErr
	}
	m.Collections = append(m.Collections, Collection{Campaign: campaign, From: from, Amount: amount})
	return nil
}

func (m *Mock) Transfer(ctx context.Context, campaign, to common.Address, amount uint64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.TransferErr != nil {
		return m.TransferErr
	}
	if m.Rejected[to] {
		return ErrRecipientRejected
	}
	m.Transfers = append(m.Transfers, Transfer{Campaign: campaign, To: to, Amount: amount})
	return nil
}

// Paid sums the transfers received by an identity.
func (m *Mock) Paid(to common.Address) (total uint64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, t := range m.Transfers {
		if t.To == to {
			total += t.Amount
		}
	}
	return
}
