package vault

import (
	"github.com/iov-one/treasury/errors"
)

// Registered error codes. The vault extension takes 1000-1009.
var (
	// ErrInvalidConfiguration is returned when a signer set cannot be
	// created from given quorum and signers.
	ErrInvalidConfiguration = errors.Register(1000, "invalid configuration")

	// ErrInvalidAddress is returned when a zero recipient or asset is used.
	ErrInvalidAddress = errors.Register(1001, "invalid address")

	// ErrInvalidQuorum is returned when a quorum is out of the [1, signers]
	// range.
	ErrInvalidQuorum = errors.Register(1002, "invalid quorum value")

	ErrInvalidRequestID = errors.Register(1003, "invalid request id")

	ErrAlreadyExecuted = errors.Register(1004, "already executed")

	// ErrDuplicateApproval is returned when a signer approves the same
	// request for the second time.
	ErrDuplicateApproval = errors.Register(1005, "duplicate approval")
)
