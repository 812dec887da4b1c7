package cash

import (
	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
)

// GetBalance returns the amount of the asset owned by the holder. An unknown
// holder owns nothing.
func GetBalance(db treasury.ReadOnlyKVStore, holder, asset treasury.Address) (uint64, error) {
	key, err := balanceKey(holder, asset)
	if err != nil {
		return 0, err
	}
	var b Balance
	switch err := balanceBucket.One(db, key, &b); {
	case err == nil:
		return b.Amount, nil
	case errors.ErrNotFound.Is(err):
		return 0, nil
	default:
		return 0, err
	}
}

// MoveCoins moves the given amount from src to dest.
// If src doesn't have sufficient coins, it fails.
func MoveCoins(db treasury.KVStore, src, dest, asset treasury.Address, amount uint64) error {
	if amount == 0 {
		return errors.Wrap(errors.ErrInvalidAmount, "non-positive amount")
	}
	have, err := GetBalance(db, src, asset)
	if err != nil {
		return err
	}
	if have < amount {
		return errors.Wrapf(errors.ErrInsufficientFunds, "%s holds %d, need %d", src, have, amount)
	}
	if err := setBalance(db, src, asset, have-amount); err != nil {
		return err
	}
	return IssueCoins(db, dest, asset, amount)
}

// IssueCoins attempts to add the given amount of coins to
// the destination address. Fails if it overflows the wallet.
func IssueCoins(db treasury.KVStore, dest, asset treasury.Address, amount uint64) error {
	have, err := GetBalance(db, dest, asset)
	if err != nil {
		return err
	}
	if have+amount < have {
		return errors.Wrapf(errors.ErrOverflow, "balance of %s", dest)
	}
	return setBalance(db, dest, asset, have+amount)
}

func setBalance(db treasury.KVStore, holder, asset treasury.Address, amount uint64) error {
	key, err := balanceKey(holder, asset)
	if err != nil {
		return err
	}
	if amount == 0 {
		if err := balanceBucket.Delete(db, key); err != nil && !errors.ErrNotFound.Is(err) {
			return err
		}
		return nil
	}
	_, err = balanceBucket.Put(db, key, &Balance{Amount: amount})
	return err
}

// GetAllowance returns the amount of the asset spender can move on behalf of
// the owner.
func GetAllowance(db treasury.ReadOnlyKVStore, owner, spender, asset treasury.Address) (uint64, error) {
	key, err := allowanceKey(owner, spender, asset)
	if err != nil {
		return 0, err
	}
	var a Allowance
	switch err := allowanceBucket.One(db, key, &a); {
	case err == nil:
		return a.Amount, nil
	case errors.ErrNotFound.Is(err):
		return 0, nil
	default:
		return 0, err
	}
}

// SetAllowance overwrites the amount spender can move on behalf of the
// owner. Zero revokes the allowance.
func SetAllowance(db treasury.KVStore, owner, spender, asset treasury.Address, amount uint64) error {
	key, err := allowanceKey(owner, spender, asset)
	if err != nil {
		return err
	}
	if amount == 0 {
		if err := allowanceBucket.Delete(db, key); err != nil && !errors.ErrNotFound.Is(err) {
			return err
		}
		return nil
	}
	_, err = allowanceBucket.Put(db, key, &Allowance{Amount: amount})
	return err
}

// SpendAllowance moves the amount from the owner to the recipient and
// decreases the allowance of the spender. An allowance that does not
// cover the amount rejects the transfer.
func SpendAllowance(db treasury.KVStore, spender, owner, recipient, asset treasury.Address, amount uint64) error {
	allowed, err := GetAllowance(db, owner, spender, asset)
	if err != nil {
		return err
	}
	if allowed < amount {
		return errors.Wrapf(errors.ErrTransferRejected,
			"%s may spend %d of %s, need %d", spender, allowed, owner, amount)
	}
	if err := MoveCoins(db, owner, recipient, asset, amount); err != nil {
		return err
	}
	return SetAllowance(db, owner, spender, asset, allowed-amount)
}
