package factory

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
	"github.com/iov-one/treasury/orm"
)

// Instance is a registry entry of a single vault.
type Instance struct {
	Address treasury.Address `protobuf:"bytes,1,opt,name=address,proto3" json:"address"`
	// Creator is the main signer of the create call, if any. Being the
	// creator does not grant any vault permission.
	Creator treasury.Address `protobuf:"bytes,2,opt,name=creator,proto3" json:"creator,omitempty"`
}

func (m *Instance) Reset()         { *m = Instance{} }
func (m *Instance) String() string { return proto.CompactTextString(m) }
func (*Instance) ProtoMessage()    {}

var _ orm.Model = (*Instance)(nil)

func (m *Instance) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Address", m.Address.Validate())
	if len(m.Creator) != 0 {
		errs = errors.AppendField(errs, "Creator", m.Creator.Validate())
	}
	return errs
}

var (
	instanceSeq    = orm.NewSequence("instance", "id")
	instanceBucket = orm.NewModelBucket("instance", &Instance{}, orm.WithIDSequence(instanceSeq))
)

// instanceAddress returns the address of the n-th vault.
func instanceAddress(n uint64) treasury.Address {
	return treasury.NewCondition("vault", "instance", orm.EncodeSequence(n)).Address()
}
