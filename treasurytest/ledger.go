package treasurytest

import (
	"context"
	"sync"

	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
)

// Transfer is a single ledger movement recorded by the Ledger mock.
type Transfer struct {
	From      treasury.Address
	Recipient treasury.Address
	Asset     treasury.Address
	Amount    uint64
}

// Ledger is an in-memory asset ledger that records every transfer it
// executes. It can be used as a drop in replacement of the cash extension
// when testing components that pay out funds.
type Ledger struct {
	// Err, when set, is returned by every TransferTo call instead of
	// moving funds.
	Err error

	mu        sync.Mutex
	balances  map[string]uint64
	transfers []Transfer
}

func balanceKey(holder, asset treasury.Address) string {
	return string(holder) + "/" + string(asset)
}

// SetBalance overwrites the balance of given holder.
func (l *Ledger) SetBalance(holder, asset treasury.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances == nil {
		l.balances = make(map[string]uint64)
	}
	l.balances[balanceKey(holder, asset)] = amount
}

// BalanceOf returns the balance of the holder.
func (l *Ledger) BalanceOf(ctx context.Context, holder, asset treasury.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[balanceKey(holder, asset)], nil
}

// TransferTo moves funds and records the transfer.
func (l *Ledger) TransferTo(ctx context.Context, from, recipient, asset treasury.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Err != nil {
		return l.Err
	}
	have := l.balances[balanceKey(from, asset)]
	if have < amount {
		return errors.Wrapf(errors.ErrInsufficientFunds, "have %d, need %d", have, amount)
	}
	if l.balances == nil {
		l.balances = make(map[string]uint64)
	}
	l.balances[balanceKey(from, asset)] = have - amount
	l.balances[balanceKey(recipient, asset)] += amount
	l.transfers = append(l.transfers, Transfer{
		From:      from.Clone(),
		Recipient: recipient.Clone(),
		Asset:     asset.Clone(),
		Amount:    amount,
	})
	return nil
}

// Transfers returns all executed transfers in execution order.
func (l *Ledger) Transfers() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transfer(nil), l.transfers...)
}
