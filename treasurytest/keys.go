package treasurytest

import (
	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/crypto"
)

// NewKey returns a new random ed25519 signer.
func NewKey() crypto.Signer {
	return crypto.GenPrivKeyEd25519()
}

// NewCondition returns a signature condition of a new random key.
func NewCondition() treasury.Condition {
	return NewKey().PublicKey().Condition()
}

// NewAddress returns the address of a new random condition.
func NewAddress() treasury.Address {
	return NewCondition().Address()
}

// NewAddresses returns n distinct random addresses.
func NewAddresses(n int) []treasury.Address {
	addrs := make([]treasury.Address, n)
	for i := range addrs {
		addrs[i] = NewAddress()
	}
	return addrs
}
