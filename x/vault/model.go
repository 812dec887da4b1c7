package vault

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
	"github.com/iov-one/treasury/orm"
)

// SignerSet is the roster of addresses allowed to propose and approve
// requests of a single vault, together with the current quorum.
type SignerSet struct {
	Signers []treasury.Address `protobuf:"bytes,1,rep,name=signers,proto3" json:"signers"`
	Quorum  uint32             `protobuf:"varint,2,opt,name=quorum,proto3" json:"quorum"`
}

func (m *SignerSet) Reset()         { *m = SignerSet{} }
func (m *SignerSet) String() string { return proto.CompactTextString(m) }
func (*SignerSet) ProtoMessage()    {}

var _ orm.Model = (*SignerSet)(nil)

// NewSignerSet returns a validated signer set. Given signers are copied.
func NewSignerSet(quorum uint32, signers []treasury.Address) (*SignerSet, error) {
	s := &SignerSet{
		Signers: make([]treasury.Address, len(signers)),
		Quorum:  quorum,
	}
	for i, a := range signers {
		s.Signers[i] = a.Clone()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *SignerSet) Validate() error {
	if len(m.Signers) == 0 {
		return errors.Field("Signers", ErrInvalidConfiguration, "no signers")
	}
	seen := make(map[string]struct{}, len(m.Signers))
	for i, a := range m.Signers {
		if a.IsZero() {
			return errors.Field("Signers", ErrInvalidConfiguration, "signer %d is the zero address", i)
		}
		if err := a.Validate(); err != nil {
			return errors.Field("Signers", ErrInvalidConfiguration, "signer %d: %s", i, err)
		}
		if _, ok := seen[string(a)]; ok {
			return errors.Field("Signers", ErrInvalidConfiguration, "duplicated signer %s", a)
		}
		seen[string(a)] = struct{}{}
	}
	if err := m.validQuorum(m.Quorum); err != nil {
		return errors.Field("Quorum", ErrInvalidConfiguration, "%s", err)
	}
	return nil
}

// validQuorum returns ErrInvalidQuorum unless 1 <= quorum <= len(signers).
func (m *SignerSet) validQuorum(quorum uint32) error {
	if quorum < 1 || uint64(quorum) > uint64(len(m.Signers)) {
		return errors.Wrapf(ErrInvalidQuorum, "quorum %d not in range [1, %d]", quorum, len(m.Signers))
	}
	return nil
}

// TransferRequest is a proposal to move Amount of Asset from the vault to
// the Recipient.
type TransferRequest struct {
	ID            uint64           `protobuf:"varint,1,opt,name=id,proto3" json:"id"`
	Amount        uint64           `protobuf:"varint,2,opt,name=amount,proto3" json:"amount"`
	Recipient     treasury.Address `protobuf:"bytes,3,opt,name=recipient,proto3" json:"recipient"`
	Asset         treasury.Address `protobuf:"bytes,4,opt,name=asset,proto3" json:"asset"`
	Proposer      treasury.Address `protobuf:"bytes,5,opt,name=proposer,proto3" json:"proposer"`
	ApprovalCount uint32           `protobuf:"varint,6,opt,name=approval_count,json=approvalCount,proto3" json:"approval_count"`
	Executed      bool             `protobuf:"varint,7,opt,name=executed,proto3" json:"executed"`
}

func (m *TransferRequest) Reset()         { *m = TransferRequest{} }
func (m *TransferRequest) String() string { return proto.CompactTextString(m) }
func (*TransferRequest) ProtoMessage()    {}

var _ orm.Model = (*TransferRequest)(nil)

func (m *TransferRequest) Validate() error {
	var errs error
	if m.ID == 0 {
		errs = errors.AppendField(errs, "ID", errors.ErrEmpty)
	}
	if m.Amount == 0 {
		errs = errors.AppendField(errs, "Amount", errors.ErrInvalidAmount)
	}
	errs = errors.AppendField(errs, "Recipient", validAddress(m.Recipient))
	errs = errors.AppendField(errs, "Asset", validAddress(m.Asset))
	errs = errors.AppendField(errs, "Proposer", m.Proposer.Validate())
	return errs
}

// QuorumUpdateRequest is a proposal to change the quorum of the vault to
// NewQuorum.
type QuorumUpdateRequest struct {
	ID            uint64           `protobuf:"varint,1,opt,name=id,proto3" json:"id"`
	NewQuorum     uint32           `protobuf:"varint,2,opt,name=new_quorum,json=newQuorum,proto3" json:"new_quorum"`
	Proposer      treasury.Address `protobuf:"bytes,3,opt,name=proposer,proto3" json:"proposer"`
	ApprovalCount uint32           `protobuf:"varint,4,opt,name=approval_count,json=approvalCount,proto3" json:"approval_count"`
	Executed      bool             `protobuf:"varint,5,opt,name=executed,proto3" json:"executed"`
}

func (m *QuorumUpdateRequest) Reset()         { *m = QuorumUpdateRequest{} }
func (m *QuorumUpdateRequest) String() string { return proto.CompactTextString(m) }
func (*QuorumUpdateRequest) ProtoMessage()    {}

var _ orm.Model = (*QuorumUpdateRequest)(nil)

func (m *QuorumUpdateRequest) Validate() error {
	var errs error
	if m.ID == 0 {
		errs = errors.AppendField(errs, "ID", errors.ErrEmpty)
	}
	if m.NewQuorum == 0 {
		errs = errors.AppendField(errs, "NewQuorum", ErrInvalidQuorum)
	}
	errs = errors.AppendField(errs, "Proposer", m.Proposer.Validate())
	return errs
}

// Approval marks that Signer approved a request. Its presence in the
// approvals bucket is what counts.
type Approval struct {
	Signer treasury.Address `protobuf:"bytes,1,opt,name=signer,proto3" json:"signer"`
}

func (m *Approval) Reset()         { *m = Approval{} }
func (m *Approval) String() string { return proto.CompactTextString(m) }
func (*Approval) ProtoMessage()    {}

var _ orm.Model = (*Approval)(nil)

func (m *Approval) Validate() error {
	return errors.Field("Signer", m.Signer.Validate(), "approval")
}

// validAddress returns ErrInvalidAddress if given address is zero or
// malformed.
func validAddress(a treasury.Address) error {
	if a.IsZero() {
		return errors.Wrap(ErrInvalidAddress, "zero address")
	}
	if err := a.Validate(); err != nil {
		return errors.Wrap(ErrInvalidAddress, err.Error())
	}
	return nil
}
