package treasury

import "context"

// Authenticator is an interface we can use to extract authentication info
// from the context. This should be passed into the constructor of
// extensions, so we can plug in another authentication system.
type Authenticator interface {
	// GetConditions reveals all Conditions fulfilled,
	// you may want GetAddresses helper
	GetConditions(context.Context) []Condition
	// HasAddress checks if any condition matches this address
	HasAddress(context.Context, Address) bool
}

// GetAddresses wraps the GetConditions method of any Authenticator
func GetAddresses(ctx context.Context, auth Authenticator) []Address {
	perms := auth.GetConditions(ctx)
	addrs := make([]Address, len(perms))
	for i, p := range perms {
		addrs[i] = p.Address()
	}
	return addrs
}

// MainSigner returns the first permission if any, otherwise nil
func MainSigner(ctx context.Context, auth Authenticator) Condition {
	signers := auth.GetConditions(ctx)
	if len(signers) == 0 {
		return nil
	}
	return signers[0]
}

// CtxAuth is an Authenticator using the context to store and retrieve
// conditions. A transport sets the conditions it verified (e.g. a request
// signature) and extensions read them back.
type CtxAuth struct {
	// Key used to set and retrieve conditions from the context. For
	// convenience only string type keys are allowed.
	Key string
}

var _ Authenticator = (*CtxAuth)(nil)

// SetConditions returns a context carrying given conditions as the
// authenticated ones.
func (a *CtxAuth) SetConditions(ctx context.Context, perms ...Condition) context.Context {
	return context.WithValue(ctx, ctxAuthKey(a.Key), perms)
}

// GetConditions returns the conditions stored in the context.
func (a *CtxAuth) GetConditions(ctx context.Context) []Condition {
	val, _ := ctx.Value(ctxAuthKey(a.Key)).([]Condition)
	return val
}

// HasAddress returns true if any condition stored in the context matches
// the address.
func (a *CtxAuth) HasAddress(ctx context.Context, addr Address) bool {
	for _, s := range a.GetConditions(ctx) {
		if addr.Equals(s.Address()) {
			return true
		}
	}
	return false
}

type ctxAuthKey string
