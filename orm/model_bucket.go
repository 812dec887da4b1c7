package orm

import (
	"reflect"
	"regexp"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
	"github.com/iov-one/treasury/store"
)

// Model is implemented by any entity that can be stored using ModelBucket.
//
// Models are serialized using protobuf, so all persisted fields must carry
// protobuf struct tags.
type Model interface {
	proto.Message
	Validate() error
}

// ModelBucket is implemented by buckets that operates on Models.
type ModelBucket interface {
	// One query the database for a single model instance. Lookup is done
	// by the primary index key. Result is loaded into given destination
	// model.
	// This method returns ErrNotFound if the entity does not exist in the
	// database.
	// If given model type cannot be used to contain stored entity, ErrType
	// is returned.
	One(db treasury.ReadOnlyKVStore, key []byte, dest Model) error

	// Has returns nil if an entity with given primary key value exists. It
	// returns ErrNotFound if no entity can be found.
	Has(db treasury.ReadOnlyKVStore, key []byte) error

	// Put saves given model in the database. Before inserting into the
	// database, model is validated using its Validate method.
	// If the key is nil or zero length then a sequence generator is used
	// to create a unique key value.
	// Using a key that already exists in the database cause the value to
	// be overwritten.
	Put(db treasury.KVStore, key []byte, m Model) ([]byte, error)

	// Delete removes an entity with given primary key from the database.
	// It returns ErrNotFound if an entity with given key does not exist.
	Delete(db treasury.KVStore, key []byte) error

	// PrefixScan returns an iterator over all entities which primary key
	// starts with given prefix, in ascending key order. A nil prefix
	// iterates over the whole bucket.
	PrefixScan(db treasury.ReadOnlyKVStore, prefix []byte) (ModelIterator, error)
}

// ModelIterator is an iterator over models loaded from a bucket.
type ModelIterator interface {
	// LoadNext loads the next model into given destination and returns
	// its primary key. It returns ErrIteratorDone once all models were
	// consumed.
	LoadNext(dest Model) (key []byte, err error)

	// Release releases the iterator.
	Release()
}

// ModelBucketOption is implemented by any function that can configure
// ModelBucket during creation.
type ModelBucketOption func(mb *modelBucket)

// WithIDSequence configures model bucket to use given sequence when
// generating a key for a model that is inserted without a key.
func WithIDSequence(s Sequence) ModelBucketOption {
	return func(mb *modelBucket) {
		mb.idSeq = s
	}
}

var validBucketName = regexp.MustCompile(`^[a-z_]{3,10}$`).MatchString

// NewModelBucket returns a ModelBucket instance. Given model defines the
// type of all entities stored in this bucket.
func NewModelBucket(name string, m Model, opts ...ModelBucketOption) ModelBucket {
	if !validBucketName(name) {
		panic(errors.Wrapf(errors.ErrInput, "bucket name %q", name))
	}
	tp := reflect.TypeOf(m)
	for tp.Kind() == reflect.Ptr {
		tp = tp.Elem()
	}

	b := &modelBucket{
		name:   name,
		prefix: []byte(name + ":"),
		model:  tp,
		idSeq:  NewSequence(name, "id"),
	}
	for _, fn := range opts {
		fn(b)
	}
	return b
}

type modelBucket struct {
	name   string
	prefix []byte
	model  reflect.Type
	idSeq  Sequence
}

func (mb *modelBucket) dbKey(key []byte) []byte {
	return append(append([]byte(nil), mb.prefix...), key...)
}

func (mb *modelBucket) checkType(dest Model) error {
	tp := reflect.TypeOf(dest)
	if tp.Kind() != reflect.Ptr || tp.Elem() != mb.model {
		return errors.Wrapf(errors.ErrType, "%T cannot be represented as %s", dest, mb.model)
	}
	return nil
}

func (mb *modelBucket) One(db treasury.ReadOnlyKVStore, key []byte, dest Model) error {
	if err := mb.checkType(dest); err != nil {
		return err
	}
	raw, err := db.Get(mb.dbKey(key))
	if err != nil {
		return errors.Wrap(err, "cannot get from the database")
	}
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "%s %x not in the store", mb.name, key)
	}
	if err := proto.Unmarshal(raw, dest); err != nil {
		return errors.Wrapf(errors.ErrModel, "cannot unmarshal %s: %s", mb.name, err)
	}
	return nil
}

func (mb *modelBucket) Has(db treasury.ReadOnlyKVStore, key []byte) error {
	ok, err := db.Has(mb.dbKey(key))
	if err != nil {
		return errors.Wrap(err, "cannot query the database")
	}
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "%s %x not in the store", mb.name, key)
	}
	return nil
}

func (mb *modelBucket) Put(db treasury.KVStore, key []byte, m Model) ([]byte, error) {
	if err := mb.checkType(m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid model")
	}

	if len(key) == 0 {
		var err error
		key, err = mb.idSeq.NextVal(db)
		if err != nil {
			return nil, errors.Wrap(err, "ID sequence")
		}
	}

	raw, err := proto.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrModel, "cannot marshal %s: %s", mb.name, err)
	}
	if err := db.Set(mb.dbKey(key), raw); err != nil {
		return nil, errors.Wrap(err, "cannot store in the database")
	}
	return key, nil
}

func (mb *modelBucket) Delete(db treasury.KVStore, key []byte) error {
	if err := mb.Has(db, key); err != nil {
		return err
	}
	if err := db.Delete(mb.dbKey(key)); err != nil {
		return errors.Wrap(err, "cannot delete from the database")
	}
	return nil
}

func (mb *modelBucket) PrefixScan(db treasury.ReadOnlyKVStore, prefix []byte) (ModelIterator, error) {
	start := mb.dbKey(prefix)
	iter, err := db.Iterator(start, store.PrefixEnd(start))
	if err != nil {
		return nil, errors.Wrap(err, "cannot create iterator")
	}
	return &modelIterator{mb: mb, iter: iter}, nil
}

type modelIterator struct {
	mb   *modelBucket
	iter treasury.Iterator
}

func (it *modelIterator) LoadNext(dest Model) ([]byte, error) {
	if err := it.mb.checkType(dest); err != nil {
		return nil, err
	}
	key, raw, err := it.iter.Next()
	if err != nil {
		return nil, err
	}
	if err := proto.Unmarshal(raw, dest); err != nil {
		return nil, errors.Wrapf(errors.ErrModel, "cannot unmarshal %s: %s", it.mb.name, err)
	}
	return key[len(it.mb.prefix):], nil
}

func (it *modelIterator) Release() {
	it.iter.Release()
}

var _ ModelBucket = (*modelBucket)(nil)
