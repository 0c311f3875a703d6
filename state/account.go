package state

import (
	"context"

	"github.com/calehh/cfund-app/custody"
	"github.com/ethereum/go-ethereum/common"
)

// Account is an identity known to the chain: its spendable balance and the
// nonce of its next transaction.
type Account struct {
	Address common.Address `json:"address"`
	Balance uint64         `json:"balance"`
	Nonce   uint64         `json:"nonce"`
}

func (a *Account) Clone() *Account {
	n := *a
	return &n
}

// accountCustody moves funds between account balances and campaign balances
// inside the same State, so a dropped State drops the movement with it.
type accountCustody struct {
	s *State
}

var _ custody.Custody = &accountCustody{}

func (s *State) Custody() custody.Custody {
	return &accountCustody{s: s}
}

func (c *accountCustody) Collect(ctx context.Context, campaign, from common.Address, amount uint64) error {
	a, err := c.s.GetAccount(from)
	if err != nil {
		return err
	}
	if a.Balance < amount {
		return custody.ErrInsufficientFunds
	}
	a.Balance -= amount
	c.s.setAccount(a, ModifiedFlagMod)
	return nil
}

func (c *accountCustody) Transfer(ctx context.Context, campaign, to common.Address, amount uint64) error {
	a, err := c.s.GetAccount(to)
	if err != nil {
		return err
	}
	if a.Balance+amount < a.Balance {
		return custody.ErrOverflow
	}
	a.Balance += amount
	c.s.setAccount(a, ModifiedFlagMod)
	return nil
}
