package vault

import (
	"context"
	"sync"

	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
	"github.com/iov-one/treasury/orm"
	"github.com/iov-one/treasury/store"
	"github.com/tendermint/tendermint/libs/log"
)

// Engine is a single vault instance. It owns the signer set and both
// request logs stored in its key space.
//
// All state changing methods are serialized. Each of them runs against a
// cache of the store that is written only if the call succeeds.
type Engine struct {
	mu sync.Mutex

	addr   treasury.Address
	db     treasury.KVStore
	ledger Ledger
	auth   treasury.Authenticator

	// Signers never change after creation so the index is built once.
	signers []treasury.Address
	index   map[string]struct{}
}

// New creates a vault with given quorum and signers in an empty store.
// The vault address is the ledger holder of the funds it controls.
func New(db treasury.KVStore, addr treasury.Address, quorum uint32, signers []treasury.Address, ledger Ledger, auth treasury.Authenticator) (*Engine, error) {
	if err := addr.Validate(); err != nil {
		return nil, errors.Wrap(err, "vault address")
	}
	set, err := NewSignerSet(quorum, signers)
	if err != nil {
		return nil, err
	}
	switch err := signerSetBucket.Has(db, signerSetKey); {
	case err == nil:
		return nil, errors.Wrapf(errors.ErrDuplicate, "vault %s already exists", addr)
	case !errors.ErrNotFound.Is(err):
		return nil, err
	}
	if _, err := signerSetBucket.Put(db, signerSetKey, set); err != nil {
		return nil, errors.Wrap(err, "cannot store signer set")
	}
	return newEngine(db, addr, set, ledger, auth), nil
}

// Load returns a vault that was previously created in given store.
func Load(db treasury.KVStore, addr treasury.Address, ledger Ledger, auth treasury.Authenticator) (*Engine, error) {
	set, err := loadSignerSet(db)
	if err != nil {
		return nil, err
	}
	return newEngine(db, addr, set, ledger, auth), nil
}

func newEngine(db treasury.KVStore, addr treasury.Address, set *SignerSet, ledger Ledger, auth treasury.Authenticator) *Engine {
	index := make(map[string]struct{}, len(set.Signers))
	for _, s := range set.Signers {
		index[string(s)] = struct{}{}
	}
	return &Engine{
		addr:    addr.Clone(),
		db:      db,
		ledger:  ledger,
		auth:    auth,
		signers: set.Signers,
		index:   index,
	}
}

// Address returns the address of the vault.
func (e *Engine) Address() treasury.Address {
	return e.addr.Clone()
}

// IsValidSigner returns true if given address is one of the vault signers.
func (e *Engine) IsValidSigner(addr treasury.Address) bool {
	_, ok := e.index[string(addr)]
	return ok
}

// Signers returns a copy of the vault signers, in creation order.
func (e *Engine) Signers() []treasury.Address {
	res := make([]treasury.Address, len(e.signers))
	for i, s := range e.signers {
		res[i] = s.Clone()
	}
	return res
}

// NoOfValidSigners returns the number of vault signers.
func (e *Engine) NoOfValidSigners() int {
	return len(e.signers)
}

// Quorum returns the number of approvals required to execute a request.
func (e *Engine) Quorum() (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	set, err := loadSignerSet(e.db)
	if err != nil {
		return 0, err
	}
	return set.Quorum, nil
}

// TxCount returns the number of transfer requests ever proposed. It is
// also the ID of the most recent transfer request.
func (e *Engine) TxCount() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return transferSeq.Latest(e.db)
}

// QuorumCount returns the number of quorum update requests ever proposed.
func (e *Engine) QuorumCount() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return quorumSeq.Latest(e.db)
}

// NoOfApprovers returns the number of approvals of the most recent quorum
// update request, or zero if none was proposed.
func (e *Engine) NoOfApprovers() (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := quorumSeq.Latest(e.db)
	if err != nil || id == 0 {
		return 0, err
	}
	var req QuorumUpdateRequest
	if err := quorumBucket.One(e.db, orm.EncodeSequence(id), &req); err != nil {
		return 0, err
	}
	return req.ApprovalCount, nil
}

// Transfer returns the transfer request with given ID.
func (e *Engine) Transfer(id uint64) (*TransferRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := checkRequestID(e.db, transferSeq, id); err != nil {
		return nil, err
	}
	var req TransferRequest
	if err := transferBucket.One(e.db, orm.EncodeSequence(id), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// QuorumUpdate returns the quorum update request with given ID.
func (e *Engine) QuorumUpdate(id uint64) (*QuorumUpdateRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := checkRequestID(e.db, quorumSeq, id); err != nil {
		return nil, err
	}
	var req QuorumUpdateRequest
	if err := quorumBucket.One(e.db, orm.EncodeSequence(id), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// TransferApprovals returns the signers that approved given transfer
// request.
func (e *Engine) TransferApprovals(id uint64) ([]treasury.Address, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := checkRequestID(e.db, transferSeq, id); err != nil {
		return nil, err
	}
	return listApprovals(e.db, transferKind, id)
}

// QuorumUpdateApprovals returns the signers that approved given quorum
// update request.
func (e *Engine) QuorumUpdateApprovals(id uint64) ([]treasury.Address, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := checkRequestID(e.db, quorumSeq, id); err != nil {
		return nil, err
	}
	return listApprovals(e.db, quorumKind, id)
}

// ProposeTransfer creates a new transfer request and returns its ID. The
// vault balance is not checked until the request reaches the quorum.
func (e *Engine) ProposeTransfer(ctx context.Context, amount uint64, recipient, asset treasury.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	caller, err := e.caller(ctx)
	if err != nil {
		return 0, err
	}
	if err := validAddress(recipient); err != nil {
		return 0, errors.Wrap(err, "recipient")
	}
	if err := validAddress(asset); err != nil {
		return 0, errors.Wrap(err, "asset")
	}
	if amount == 0 {
		return 0, errors.Wrap(errors.ErrInvalidAmount, "amount must be greater than zero")
	}

	var id uint64
	err = e.atomic(func(db treasury.KVStore) error {
		var err error
		if id, err = transferSeq.NextInt(db); err != nil {
			return err
		}
		req := TransferRequest{
			ID:        id,
			Amount:    amount,
			Recipient: recipient.Clone(),
			Asset:     asset.Clone(),
			Proposer:  caller,
		}
		_, err = transferBucket.Put(db, orm.EncodeSequence(id), &req)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.logger(ctx).Info("transfer proposed",
		"transfer", id, "proposer", caller, "recipient", recipient, "asset", asset, "amount", amount)
	return id, nil
}

// ApproveTransfer records the caller approval of the transfer request.
// The approval that brings the request to the quorum executes the
// transfer. If the vault does not hold enough funds at that moment the
// call fails with errors.ErrInsufficientFunds, nothing is recorded and the
// approval can be retried once the vault is funded.
func (e *Engine) ApproveTransfer(ctx context.Context, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := checkRequestID(e.db, transferSeq, id); err != nil {
		return err
	}
	caller, err := e.caller(ctx)
	if err != nil {
		return err
	}

	// The executed request is committed before the ledger call. A failed
	// payout restores the previous state.
	key := orm.EncodeSequence(id)
	var before, req TransferRequest
	err = e.atomic(func(db treasury.KVStore) error {
		if err := transferBucket.One(db, key, &req); err != nil {
			return err
		}
		if req.Executed {
			return errors.Wrapf(ErrAlreadyExecuted, "transfer %d", id)
		}
		before = req
		if err := addApproval(db, transferKind, id, caller); err != nil {
			return err
		}
		req.ApprovalCount++

		set, err := loadSignerSet(db)
		if err != nil {
			return err
		}
		if req.ApprovalCount >= set.Quorum {
			balance, err := e.ledger.BalanceOf(ctx, e.addr, req.Asset)
			if err != nil {
				return errors.Wrap(err, "cannot query vault balance")
			}
			if balance < req.Amount {
				return errors.Wrapf(errors.ErrInsufficientFunds,
					"vault holds %d, transfer %d requires %d", balance, id, req.Amount)
			}
			req.Executed = true
		}
		_, err = transferBucket.Put(db, key, &req)
		return err
	})
	if err != nil {
		return err
	}

	logger := e.logger(ctx)
	if !req.Executed {
		logger.Info("transfer approved", "transfer", id, "signer", caller)
		return nil
	}

	if err := e.ledger.TransferTo(ctx, e.addr, req.Recipient, req.Asset, req.Amount); err != nil {
		rollback := e.atomic(func(db treasury.KVStore) error {
			if err := removeApproval(db, transferKind, id, caller); err != nil {
				return err
			}
			_, err := transferBucket.Put(db, key, &before)
			return err
		})
		if rollback != nil {
			// The request stays executed. Funds were not moved, so it is
			// never paid out twice.
			logger.Error("cannot restore transfer after failed payout",
				"transfer", id, "err", rollback)
		}
		return ledgerError(err)
	}

	logger.Info("transfer approved", "transfer", id, "signer", caller)
	logger.Info("transfer executed", "transfer", id)
	return nil
}

// ProposeQuorumUpdate creates a new request to change the quorum and
// returns its ID. The proposer does not approve the request implicitly.
func (e *Engine) ProposeQuorumUpdate(ctx context.Context, newQuorum uint32) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	caller, err := e.caller(ctx)
	if err != nil {
		return 0, err
	}

	var id uint64
	err = e.atomic(func(db treasury.KVStore) error {
		set, err := loadSignerSet(db)
		if err != nil {
			return err
		}
		if err := set.validQuorum(newQuorum); err != nil {
			return err
		}
		if id, err = quorumSeq.NextInt(db); err != nil {
			return err
		}
		req := QuorumUpdateRequest{
			ID:        id,
			NewQuorum: newQuorum,
			Proposer:  caller,
		}
		_, err = quorumBucket.Put(db, orm.EncodeSequence(id), &req)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.logger(ctx).Info("quorum update proposed",
		"quorum_update", id, "proposer", caller, "new_quorum", newQuorum)
	return id, nil
}

// ApproveQuorumUpdate records the caller approval of the quorum update
// request. The approval that brings the request to the quorum sets the
// new quorum value.
func (e *Engine) ApproveQuorumUpdate(ctx context.Context, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := checkRequestID(e.db, quorumSeq, id); err != nil {
		return err
	}
	caller, err := e.caller(ctx)
	if err != nil {
		return err
	}

	var executed bool
	var newQuorum uint32
	err = e.atomic(func(db treasury.KVStore) error {
		key := orm.EncodeSequence(id)
		var req QuorumUpdateRequest
		if err := quorumBucket.One(db, key, &req); err != nil {
			return err
		}
		if req.Executed {
			return errors.Wrapf(ErrAlreadyExecuted, "quorum update %d", id)
		}
		if err := addApproval(db, quorumKind, id, caller); err != nil {
			return err
		}
		req.ApprovalCount++

		set, err := loadSignerSet(db)
		if err != nil {
			return err
		}
		if req.ApprovalCount >= set.Quorum {
			set.Quorum = req.NewQuorum
			if _, err := signerSetBucket.Put(db, signerSetKey, set); err != nil {
				return errors.Wrap(err, "cannot update quorum")
			}
			req.Executed = true
			executed, newQuorum = true, req.NewQuorum
		}
		_, err = quorumBucket.Put(db, key, &req)
		return err
	})
	if err != nil {
		return err
	}

	logger := e.logger(ctx)
	logger.Info("quorum update approved", "quorum_update", id, "signer", caller)
	if executed {
		logger.Info("quorum updated", "quorum_update", id, "quorum", newQuorum)
	}
	return nil
}

// caller returns the address of the main signer of the request. Only vault
// signers are accepted.
func (e *Engine) caller(ctx context.Context) (treasury.Address, error) {
	cond := treasury.MainSigner(ctx, e.auth)
	if cond == nil {
		return nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	addr := cond.Address()
	if !e.IsValidSigner(addr) {
		return nil, errors.Wrapf(errors.ErrUnauthorized, "%s is not a vault signer", addr)
	}
	return addr, nil
}

// atomic runs fn against a cache of the vault store. Changes are written
// only if fn succeeds.
func (e *Engine) atomic(fn func(db treasury.KVStore) error) error {
	cache := store.NewBTreeCacheWrap(e.db, nil)
	if err := fn(cache); err != nil {
		cache.Discard()
		return err
	}
	if err := cache.Write(); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

func (e *Engine) logger(ctx context.Context) log.Logger {
	return treasury.GetLogger(ctx).With("vault", e.addr)
}

// ledgerError makes sure a ledger failure is reported as one of the two
// transfer failure kinds.
func ledgerError(err error) error {
	if errors.ErrInsufficientFunds.Is(err) || errors.ErrTransferRejected.Is(err) {
		return errors.Wrap(err, "ledger transfer")
	}
	return errors.Wrapf(errors.ErrTransferRejected, "ledger transfer: %s", err)
}
