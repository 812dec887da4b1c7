package sigs

import "github.com/iov-one/treasury/errors"

// ErrInvalidSequence is returned when a request carries a sequence that
// was already used or is not the next one.
var ErrInvalidSequence = errors.Register(20, "invalid sequence number")
