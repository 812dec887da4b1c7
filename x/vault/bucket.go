package vault

import (
	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
	"github.com/iov-one/treasury/orm"
)

var (
	signerSetKey = []byte("main")

	signerSetBucket = orm.NewModelBucket("signerset", &SignerSet{})
	transferBucket  = orm.NewModelBucket("transfer", &TransferRequest{})
	quorumBucket    = orm.NewModelBucket("quorum", &QuorumUpdateRequest{})
	approvalBucket  = orm.NewModelBucket("approval", &Approval{})

	transferSeq = orm.NewSequence("transfer", "id")
	quorumSeq   = orm.NewSequence("quorum", "id")
)

// Approvals of both request kinds share a bucket. The key is the request
// kind, its ID and the signer address, so that approvals of a single
// request can be listed with a prefix scan.
const (
	transferKind byte = 't'
	quorumKind   byte = 'q'
)

func approvalPrefix(kind byte, id uint64) []byte {
	return append([]byte{kind}, orm.EncodeSequence(id)...)
}

func approvalKey(kind byte, id uint64, signer treasury.Address) []byte {
	return append(approvalPrefix(kind, id), signer...)
}

// addApproval stores the approval of the signer. It fails with
// ErrDuplicateApproval if the signer already approved this request.
func addApproval(db treasury.KVStore, kind byte, id uint64, signer treasury.Address) error {
	key := approvalKey(kind, id, signer)
	switch err := approvalBucket.Has(db, key); {
	case err == nil:
		return errors.Wrapf(ErrDuplicateApproval, "%s already approved request %d", signer, id)
	case !errors.ErrNotFound.Is(err):
		return err
	}
	if _, err := approvalBucket.Put(db, key, &Approval{Signer: signer}); err != nil {
		return errors.Wrap(err, "cannot store approval")
	}
	return nil
}

// removeApproval deletes the approval of the signer.
func removeApproval(db treasury.KVStore, kind byte, id uint64, signer treasury.Address) error {
	if err := approvalBucket.Delete(db, approvalKey(kind, id, signer)); err != nil {
		return errors.Wrap(err, "cannot remove approval")
	}
	return nil
}

// listApprovals returns the addresses of all signers that approved the
// request, ordered by address.
func listApprovals(db treasury.ReadOnlyKVStore, kind byte, id uint64) ([]treasury.Address, error) {
	it, err := approvalBucket.PrefixScan(db, approvalPrefix(kind, id))
	if err != nil {
		return nil, err
	}
	defer it.Release()

	var signers []treasury.Address
	for {
		var a Approval
		switch _, err := it.LoadNext(&a); {
		case err == nil:
			signers = append(signers, a.Signer)
		case errors.ErrIteratorDone.Is(err):
			return signers, nil
		default:
			return nil, errors.Wrap(err, "cannot load approval")
		}
	}
}

func loadSignerSet(db treasury.ReadOnlyKVStore) (*SignerSet, error) {
	var s SignerSet
	if err := signerSetBucket.One(db, signerSetKey, &s); err != nil {
		return nil, errors.Wrap(err, "signer set")
	}
	return &s, nil
}

// checkRequestID returns ErrInvalidRequestID unless 1 <= id <= latest
// value of the sequence.
func checkRequestID(db treasury.ReadOnlyKVStore, seq orm.Sequence, id uint64) error {
	count, err := seq.Latest(db)
	if err != nil {
		return err
	}
	if id < 1 || id > count {
		return errors.Wrapf(ErrInvalidRequestID, "request %d not in range [1, %d]", id, count)
	}
	return nil
}
