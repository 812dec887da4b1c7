package vault

import (
	"context"

	"github.com/iov-one/treasury"
)

// Ledger is the asset ledger a vault pays out from. The vault address is
// the holder of the funds it controls.
//
// TransferTo must either move the whole amount or nothing. A failure
// should be reported as errors.ErrInsufficientFunds or
// errors.ErrTransferRejected. Any other failure is reported to the vault
// caller as errors.ErrTransferRejected.
type Ledger interface {
	BalanceOf(ctx context.Context, holder, asset treasury.Address) (uint64, error)
	TransferTo(ctx context.Context, from, recipient, asset treasury.Address, amount uint64) error
}
