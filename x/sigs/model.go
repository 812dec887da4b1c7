package sigs

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/treasury/crypto"
	"github.com/iov-one/treasury/errors"
	"github.com/iov-one/treasury/orm"
)

// UserData is the authentication state of a single signer.
type UserData struct {
	Pubkey   crypto.PublicKey `protobuf:"bytes,1,opt,name=pubkey,proto3" json:"pubkey"`
	Sequence int64            `protobuf:"varint,2,opt,name=sequence,proto3" json:"sequence"`
}

func (m *UserData) Reset()         { *m = UserData{} }
func (m *UserData) String() string { return proto.CompactTextString(m) }
func (*UserData) ProtoMessage()    {}

var _ orm.Model = (*UserData)(nil)

func (m *UserData) Validate() error {
	var errs error
	if seq := m.Sequence; seq < 0 {
		errs = errors.AppendField(errs, "Sequence", ErrInvalidSequence)
	} else if seq > 0 && len(m.Pubkey) == 0 {
		errs = errors.Append(errs, errors.Field("Sequence", ErrInvalidSequence, "needs Pubkey"))
	}
	return errs
}

// maxSequence is the greatest value a javascript client can represent
// without losing precision.
const maxSequence = (1 << 53) - 1

// CheckAndIncrementSequence increments the sequence if it is equal to the
// expected value. Otherwise an error is returned.
func (m *UserData) CheckAndIncrementSequence(expected int64) error {
	if m.Sequence != expected {
		return errors.Wrapf(ErrInvalidSequence, "mismatch expected %d, got %d", m.Sequence, expected)
	}
	next := m.Sequence + 1
	if next <= 0 || next > maxSequence {
		return errors.Wrap(errors.ErrOverflow, "sequence out of range")
	}
	m.Sequence = next
	return nil
}

var userBucket = orm.NewModelBucket("sigs", &UserData{})
