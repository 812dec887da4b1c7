package store

import (
	"bytes"
	"sync"

	"github.com/google/btree"
	"github.com/iov-one/treasury"
)

const (
	// DefaultFreeListSize is the size we hold for free node in btree
	DefaultFreeListSize = btree.DefaultFreeListSize

	// degree of all btrees created by this package
	degree = 2
)

// MemStore returns a simple, thread safe, in memory implementation. There
// is no persistence here....
func MemStore() treasury.CacheableKVStore {
	return &memStore{
		tree: btree.New(degree),
	}
}

type memStore struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

var _ treasury.CacheableKVStore = (*memStore)(nil)

func (s *memStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := s.tree.Get(bkey{key})
	if res == nil {
		return nil, nil
	}
	return res.(setItem).value, nil
}

func (s *memStore) Has(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Has(bkey{key}), nil
}

func (s *memStore) Set(key, value []byte) error {
	// Callers may reuse their buffers.
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(newSetItem(k, v))
	return nil
}

func (s *memStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(bkey{key})
	return nil
}

// Iterator returns a snapshot of the requested range. Writes done after
// this call are not visible to the iterator.
func (s *memStore) Iterator(start, end []byte) (treasury.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var models []Model
	ascend(s.tree, start, end, func(it btree.Item) bool {
		si := it.(setItem)
		models = append(models, Model{Key: si.key, Value: si.value})
		return true
	})
	return NewSliceIterator(models), nil
}

func (s *memStore) CacheWrap() treasury.KVCacheWrap {
	return NewBTreeCacheWrap(s, nil)
}

///////////////////////////////////////////////
// Actual CacheWrap implementation

// BTreeCacheWrap places a btree cache over a KVStore. All writes are kept
// in the btree until Write is called.
type BTreeCacheWrap struct {
	bt   *btree.BTree
	free *btree.FreeList
	back treasury.KVStore
}

var _ treasury.KVCacheWrap = BTreeCacheWrap{}

// NewBTreeCacheWrap initializes a BTree to cache around this
// kv store.
//
// free may be nil, but set to an existing list to reuse it
// for memory savings
func NewBTreeCacheWrap(kv treasury.KVStore, free *btree.FreeList) BTreeCacheWrap {
	if free == nil {
		free = btree.NewFreeList(DefaultFreeListSize)
	}
	return BTreeCacheWrap{
		bt:   btree.NewWithFreeList(degree, free),
		free: free,
		back: kv,
	}
}

// CacheWrap layers another BTree on top of this one.
func (b BTreeCacheWrap) CacheWrap() treasury.KVCacheWrap {
	return NewBTreeCacheWrap(b, b.free)
}

// Write syncs with the underlying store.
// And then cleans up
func (b BTreeCacheWrap) Write() error {
	var err error
	b.bt.Ascend(func(it btree.Item) bool {
		switch t := it.(type) {
		case setItem:
			err = b.back.Set(t.key, t.value)
		case deletedItem:
			err = b.back.Delete(t.key)
		}
		return err == nil
	})
	b.Discard()
	return err
}

// Discard invalidates this CacheWrap and releases all data
func (b BTreeCacheWrap) Discard() {
	b.bt.Clear(true)
}

// Set writes to the BTree
func (b BTreeCacheWrap) Set(key, value []byte) error {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	b.bt.ReplaceOrInsert(newSetItem(k, v))
	return nil
}

// Delete marks the key as deleted in the BTree
func (b BTreeCacheWrap) Delete(key []byte) error {
	b.bt.ReplaceOrInsert(newDeletedItem(append([]byte(nil), key...)))
	return nil
}

// Get reads from btree if there, else backing store
func (b BTreeCacheWrap) Get(key []byte) ([]byte, error) {
	switch t := b.bt.Get(bkey{key}).(type) {
	case setItem:
		return t.value, nil
	case deletedItem:
		return nil, nil
	default:
		return b.back.Get(key)
	}
}

// Has reads from btree if there, else backing store
func (b BTreeCacheWrap) Has(key []byte) (bool, error) {
	switch b.bt.Get(bkey{key}).(type) {
	case setItem:
		return true, nil
	case deletedItem:
		return false, nil
	default:
		return b.back.Has(key)
	}
}

// Iterator over a domain of keys in ascending order.
// Combines results from btree and backing store
func (b BTreeCacheWrap) Iterator(start, end []byte) (treasury.Iterator, error) {
	parent, err := b.back.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	var local []btree.Item
	ascend(b.bt, start, end, func(it btree.Item) bool {
		local = append(local, it)
		return true
	})
	return newCombinedIterator(local, parent), nil
}

/////////////////////////////////////////////////////////
// Items to write to btree

// we enforce all data in our btree implements keyer so we
// can compare nicely
type keyer interface {
	Key() []byte
}

// bkey implements keyer and btree.Item
// and may be used for queries or embedded in data to store
type bkey struct {
	key []byte
}

var _ keyer = bkey{}
var _ btree.Item = bkey{}

func (k bkey) Key() []byte {
	return k.key
}

// Less returns true iff second argument is greater than first
//
// panics if the item to compare doesn't implement keyer.
func (k bkey) Less(item btree.Item) bool {
	cmp := item.(keyer).Key()
	return bytes.Compare(k.key, cmp) < 0
}

type deletedItem struct {
	bkey
}

func newDeletedItem(key []byte) deletedItem {
	return deletedItem{bkey{key}}
}

type setItem struct {
	bkey
	value []byte
}

func newSetItem(key, value []byte) setItem {
	return setItem{bkey{key}, value}
}

// ascend calls fn for all items in [start, end). Nil bounds are open.
func ascend(bt *btree.BTree, start, end []byte, fn btree.ItemIterator) {
	switch {
	case start == nil && end == nil:
		bt.Ascend(fn)
	case start == nil:
		bt.AscendLessThan(bkey{end}, fn)
	case end == nil:
		bt.AscendGreaterOrEqual(bkey{start}, fn)
	default:
		bt.AscendRange(bkey{start}, bkey{end}, fn)
	}
}
