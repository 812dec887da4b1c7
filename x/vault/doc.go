/*
Package vault implements a pooled fund controlled by a group of signers.

A vault is created with a fixed list of signers and a quorum. Any signer
can propose a transfer of an asset held by the vault. The transfer is
executed by the ledger once quorum signers approved it. The quorum itself
can be changed the same way, by proposing and approving a quorum update.

Balance is checked only when a transfer reaches the quorum. A transfer can
be proposed and approved before the vault is funded. The approval that
reaches the quorum fails with errors.ErrInsufficientFunds until the vault
holds enough funds, and can be retried afterwards.

Each call is atomic. A failing call does not modify the vault state.
*/
package vault
