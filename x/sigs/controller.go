package sigs

import (
	"sync"

	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/crypto"
	"github.com/iov-one/treasury/errors"
)

// Controller tracks sequences of all signers. It is safe for concurrent
// use.
type Controller struct {
	mu sync.Mutex
	db treasury.KVStore
}

// NewController returns a controller storing sequences in given store.
func NewController(db treasury.KVStore) *Controller {
	return &Controller{db: db}
}

// Sequence returns the sequence the signer must use with the next request.
// A signer that was never seen starts at zero.
func (c *Controller) Sequence(signer treasury.Address) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, err := c.load(signer)
	if err != nil {
		return 0, err
	}
	return user.Sequence, nil
}

// Consume accepts the sequence of a request signed with given key and
// increments it. The signature itself must be verified by the caller
// before, so that a forged request cannot use up a sequence.
func (c *Controller) Consume(pub crypto.PublicKey, seq int64) error {
	if seq < 0 {
		return errors.Wrap(ErrInvalidSequence, "negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	addr := pub.Condition().Address()
	user, err := c.load(addr)
	if err != nil {
		return err
	}
	if err := user.CheckAndIncrementSequence(seq); err != nil {
		return err
	}
	if len(user.Pubkey) == 0 {
		user.Pubkey = append(crypto.PublicKey(nil), pub...)
	}
	if _, err := userBucket.Put(c.db, addr, user); err != nil {
		return errors.Wrap(err, "cannot store sequence")
	}
	return nil
}

func (c *Controller) load(addr treasury.Address) (*UserData, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	var user UserData
	switch err := userBucket.One(c.db, addr, &user); {
	case err == nil:
		return &user, nil
	case errors.ErrNotFound.Is(err):
		return &UserData{}, nil
	default:
		return nil, err
	}
}
