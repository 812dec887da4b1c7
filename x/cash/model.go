package cash

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
	"github.com/iov-one/treasury/orm"
)

// Balance is the amount of a single asset owned by a holder.
type Balance struct {
	Amount uint64 `protobuf:"varint,1,opt,name=amount,proto3" json:"amount"`
}

func (m *Balance) Reset()         { *m = Balance{} }
func (m *Balance) String() string { return proto.CompactTextString(m) }
func (*Balance) ProtoMessage()    {}

func (m *Balance) Validate() error {
	return nil
}

// Allowance is the amount of an asset a spender can move on behalf of the
// owner.
type Allowance struct {
	Amount uint64 `protobuf:"varint,1,opt,name=amount,proto3" json:"amount"`
}

func (m *Allowance) Reset()         { *m = Allowance{} }
func (m *Allowance) String() string { return proto.CompactTextString(m) }
func (*Allowance) ProtoMessage()    {}

func (m *Allowance) Validate() error {
	return nil
}

var (
	_ orm.Model = (*Balance)(nil)
	_ orm.Model = (*Allowance)(nil)
)

var (
	balanceBucket   = orm.NewModelBucket("balance", &Balance{})
	allowanceBucket = orm.NewModelBucket("allowance", &Allowance{})
)

// balanceKey is the holder address followed by the asset address. Both
// are validated so that the key cannot be ambiguous.
func balanceKey(holder, asset treasury.Address) ([]byte, error) {
	if err := holder.Validate(); err != nil {
		return nil, errors.Wrap(err, "holder")
	}
	if err := asset.Validate(); err != nil {
		return nil, errors.Wrap(err, "asset")
	}
	key := make([]byte, 0, 2*treasury.AddressLength)
	return append(append(key, holder...), asset...), nil
}

func allowanceKey(owner, spender, asset treasury.Address) ([]byte, error) {
	if err := owner.Validate(); err != nil {
		return nil, errors.Wrap(err, "owner")
	}
	if err := spender.Validate(); err != nil {
		return nil, errors.Wrap(err, "spender")
	}
	if err := asset.Validate(); err != nil {
		return nil, errors.Wrap(err, "asset")
	}
	key := make([]byte, 0, 3*treasury.AddressLength)
	return append(append(append(key, owner...), spender...), asset...), nil
}
