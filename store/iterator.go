package store

import (
	"bytes"

	"github.com/google/btree"
	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
)

// Model groups together key and value to return
type Model struct {
	Key   []byte
	Value []byte
}

////////////////////////////////////////////////
// Slice -> Iterator

// SliceIterator wraps an Iterator over a slice of models
type SliceIterator struct {
	data []Model
	idx  int
}

var _ treasury.Iterator = (*SliceIterator)(nil)

// NewSliceIterator creates a new Iterator over this slice
func NewSliceIterator(data []Model) *SliceIterator {
	return &SliceIterator{
		data: data,
	}
}

// Next implements Iterator.
func (s *SliceIterator) Next() (key, value []byte, err error) {
	if s.idx >= len(s.data) {
		return nil, nil, errors.ErrIteratorDone
	}
	m := s.data[s.idx]
	s.idx++
	return m.Key, m.Value, nil
}

// Release implements Iterator.
func (s *SliceIterator) Release() {
	s.data = nil
}

////////////////////////////////////////////////
// Cache wrap items merged with the parent iterator

// combinedIterator merges the cached items with the parent iterator,
// taking into consideration overwrites and deletes.
type combinedIterator struct {
	local  []btree.Item
	parent treasury.Iterator

	// next value read from the parent, if any
	pkey, pvalue []byte
	pdone        bool
}

var _ treasury.Iterator = (*combinedIterator)(nil)

func newCombinedIterator(local []btree.Item, parent treasury.Iterator) *combinedIterator {
	return &combinedIterator{
		local:  local,
		parent: parent,
	}
}

func (c *combinedIterator) Next() (key, value []byte, err error) {
	for {
		if !c.pdone && c.pkey == nil {
			c.pkey, c.pvalue, err = c.parent.Next()
			if errors.ErrIteratorDone.Is(err) {
				c.pdone = true
			} else if err != nil {
				return nil, nil, err
			}
		}

		if len(c.local) == 0 {
			if c.pdone {
				return nil, nil, errors.ErrIteratorDone
			}
			key, value = c.pkey, c.pvalue
			c.pkey, c.pvalue = nil, nil
			return key, value, nil
		}

		head := c.local[0].(keyer).Key()
		cmp := -1
		if !c.pdone {
			cmp = bytes.Compare(head, c.pkey)
		}
		if cmp > 0 {
			// Parent value comes first and is not shadowed.
			key, value = c.pkey, c.pvalue
			c.pkey, c.pvalue = nil, nil
			return key, value, nil
		}
		if cmp == 0 {
			// Local value shadows the parent one.
			c.pkey, c.pvalue = nil, nil
		}

		item := c.local[0]
		c.local = c.local[1:]
		if si, ok := item.(setItem); ok {
			return si.key, si.value, nil
		}
		// Deleted, continue with the next one.
	}
}

func (c *combinedIterator) Release() {
	c.parent.Release()
	c.local = nil
}
