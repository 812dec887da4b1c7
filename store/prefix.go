package store

import (
	"github.com/iov-one/treasury"
)

// NewPrefixStore returns a store that transparently prefixes all keys with
// given prefix. Use it to give an extension instance its own key space
// within a shared store.
func NewPrefixStore(db treasury.KVStore, prefix []byte) treasury.KVStore {
	return &prefixStore{
		db:     db,
		prefix: append([]byte(nil), prefix...),
	}
}

type prefixStore struct {
	db     treasury.KVStore
	prefix []byte
}

var _ treasury.KVStore = (*prefixStore)(nil)

func (p *prefixStore) key(k []byte) []byte {
	res := make([]byte, 0, len(p.prefix)+len(k))
	res = append(res, p.prefix...)
	return append(res, k...)
}

func (p *prefixStore) Get(key []byte) ([]byte, error) {
	return p.db.Get(p.key(key))
}

func (p *prefixStore) Has(key []byte) (bool, error) {
	return p.db.Has(p.key(key))
}

func (p *prefixStore) Set(key, value []byte) error {
	return p.db.Set(p.key(key), value)
}

func (p *prefixStore) Delete(key []byte) error {
	return p.db.Delete(p.key(key))
}

func (p *prefixStore) Iterator(start, end []byte) (treasury.Iterator, error) {
	var s, e []byte
	if start == nil {
		s = p.prefix
	} else {
		s = p.key(start)
	}
	if end == nil {
		e = PrefixEnd(p.prefix)
	} else {
		e = p.key(end)
	}
	iter, err := p.db.Iterator(s, e)
	if err != nil {
		return nil, err
	}
	return &prefixIterator{iter: iter, cut: len(p.prefix)}, nil
}

type prefixIterator struct {
	iter treasury.Iterator
	cut  int
}

func (p *prefixIterator) Next() (key, value []byte, err error) {
	key, value, err = p.iter.Next()
	if err != nil {
		return nil, nil, err
	}
	return key[p.cut:], value, nil
}

func (p *prefixIterator) Release() {
	p.iter.Release()
}

// PrefixEnd returns the smallest key that is greater than all keys
// starting with given prefix. It returns nil if there is no such key
// (prefix made only of 0xFF bytes).
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
