package cash

import (
	"context"
	"sync"

	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
	"github.com/iov-one/treasury/store"
	"github.com/iov-one/treasury/x/vault"
)

// Ledger is a process wide cash ledger. Each operation is atomic and
// operations are serialized.
//
// TransferTo is meant for trusted in-process callers (a vault paying out
// its own funds). All other state changing methods act on behalf of the
// main signer of the context.
type Ledger struct {
	mu     sync.Mutex
	db     treasury.KVStore
	auth   treasury.Authenticator
	minter treasury.Address
}

var _ vault.Ledger = (*Ledger)(nil)

// NewLedger returns a ledger storing balances in given store. Only the
// minter can issue new funds. A nil minter disables issuing.
func NewLedger(db treasury.KVStore, auth treasury.Authenticator, minter treasury.Address) *Ledger {
	return &Ledger{
		db:     db,
		auth:   auth,
		minter: minter,
	}
}

// BalanceOf returns the amount of the asset owned by the holder.
func (l *Ledger) BalanceOf(ctx context.Context, holder, asset treasury.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return GetBalance(l.db, holder, asset)
}

// Allowance returns the amount of the asset spender can move on behalf of
// the owner.
func (l *Ledger) Allowance(ctx context.Context, owner, spender, asset treasury.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return GetAllowance(l.db, owner, spender, asset)
}

// TransferTo moves funds owned by from to the recipient.
func (l *Ledger) TransferTo(ctx context.Context, from, recipient, asset treasury.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.atomic(func(db treasury.KVStore) error {
		return MoveCoins(db, from, recipient, asset, amount)
	})
	if err != nil {
		return err
	}
	treasury.GetLogger(ctx).Info("cash transfer",
		"from", from, "recipient", recipient, "asset", asset, "amount", amount)
	return nil
}

// Send moves funds of the caller to the recipient.
func (l *Ledger) Send(ctx context.Context, recipient, asset treasury.Address, amount uint64) error {
	caller, err := l.caller(ctx)
	if err != nil {
		return err
	}
	return l.TransferTo(ctx, caller, recipient, asset, amount)
}

// Issue creates new funds owned by the recipient. Only the minter can
// issue.
func (l *Ledger) Issue(ctx context.Context, recipient, asset treasury.Address, amount uint64) error {
	caller, err := l.caller(ctx)
	if err != nil {
		return err
	}
	if len(l.minter) == 0 || !caller.Equals(l.minter) {
		return errors.Wrap(errors.ErrUnauthorized, "only the minter can issue")
	}
	if amount == 0 {
		return errors.Wrap(errors.ErrInvalidAmount, "non-positive amount")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err = l.atomic(func(db treasury.KVStore) error {
		return IssueCoins(db, recipient, asset, amount)
	})
	if err != nil {
		return err
	}
	treasury.GetLogger(ctx).Info("cash issued", "recipient", recipient, "asset", asset, "amount", amount)
	return nil
}

// Approve allows the spender to move up to amount of the caller funds.
// It overwrites any previous allowance.
func (l *Ledger) Approve(ctx context.Context, spender, asset treasury.Address, amount uint64) error {
	caller, err := l.caller(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err = l.atomic(func(db treasury.KVStore) error {
		return SetAllowance(db, caller, spender, asset, amount)
	})
	if err != nil {
		return err
	}
	treasury.GetLogger(ctx).Info("cash allowance",
		"owner", caller, "spender", spender, "asset", asset, "amount", amount)
	return nil
}

// TransferFrom moves funds of the owner to the recipient, spending the
// allowance the owner gave to the caller. A missing or too small
// allowance fails with errors.ErrTransferRejected.
func (l *Ledger) TransferFrom(ctx context.Context, owner, recipient, asset treasury.Address, amount uint64) error {
	caller, err := l.caller(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err = l.atomic(func(db treasury.KVStore) error {
		return SpendAllowance(db, caller, owner, recipient, asset, amount)
	})
	if err != nil {
		return err
	}
	treasury.GetLogger(ctx).Info("cash transfer from",
		"spender", caller, "owner", owner, "recipient", recipient, "asset", asset, "amount", amount)
	return nil
}

func (l *Ledger) caller(ctx context.Context) (treasury.Address, error) {
	cond := treasury.MainSigner(ctx, l.auth)
	if cond == nil {
		return nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	return cond.Address(), nil
}

func (l *Ledger) atomic(fn func(db treasury.KVStore) error) error {
	cache := store.NewBTreeCacheWrap(l.db, nil)
	if err := fn(cache); err != nil {
		cache.Discard()
		return err
	}
	if err := cache.Write(); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}
