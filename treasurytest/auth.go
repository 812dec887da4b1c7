package treasurytest

import (
	"context"

	"github.com/iov-one/treasury"
)

// Auth is a mock implementing treasury.Authenticator interface.
//
// This structure authenticates any of referenced conditions.
// You can use either Signer or Signers (or both) attributes to reference
// conditions. Each time all signers (regardless which attribute) are
// considered, and Signer is always the main signer.
type Auth struct {
	// Signer represents an authentication of a single signer. This is a
	// convenience attribute when creating an authentication method for a
	// single signer.
	Signer treasury.Condition

	// Signers represents an authentication of multiple signers.
	Signers []treasury.Condition
}

var _ treasury.Authenticator = (*Auth)(nil)

func (a *Auth) GetConditions(context.Context) []treasury.Condition {
	if a.Signer != nil {
		return append([]treasury.Condition{a.Signer}, a.Signers...)
	}
	return a.Signers
}

func (a *Auth) HasAddress(ctx context.Context, addr treasury.Address) bool {
	for _, s := range a.GetConditions(ctx) {
		if addr.Equals(s.Address()) {
			return true
		}
	}
	return false
}
