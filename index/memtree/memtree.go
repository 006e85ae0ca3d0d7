// Package memtree is an index over google/btree, the in-memory B-tree the
// memtable of a storage engine would use.
package memtree

import (
	"github.com/google/btree"

	"github.com/btree-query-bench/ratingidx/index"
	"github.com/btree-query-bench/ratingidx/store"
)

var _ index.Index = (*MemTree)(nil)

const degree = 32

type item struct {
	key    int64
	seq    uint64
	handle store.Handle
}

func less(a, b item) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.seq < b.seq
}

// MemTree orders (key, insertion sequence) pairs, so duplicate keys keep
// their insertion order.
type MemTree struct {
	tree *btree.BTreeG[item]
	seq  uint64
}

func New() *MemTree {
	return &MemTree{tree: btree.NewG(degree, less)}
}

func (m *MemTree) Name() string { return "memtree" }
func (m *MemTree) Close() error { return nil }

// Len is the number of (key, handle) pairs.
func (m *MemTree) Len() int { return m.tree.Len() }

func (m *MemTree) Insert(key int64, h store.Handle) error {
	m.tree.ReplaceOrInsert(item{key: key, seq: m.seq, handle: h})
	m.seq++
	return nil
}

func (m *MemTree) Delete(key int64) error {
	var doomed []item
	m.tree.AscendGreaterOrEqual(item{key: key}, func(it item) bool {
		if it.key != key {
			return false
		}
		doomed = append(doomed, it)
		return true
	})
	for _, it := range doomed {
		m.tree.Delete(it)
	}
	return nil
}

// Range materializes the matching entries; the tree must not change while
// a btree iteration is running.
func (m *MemTree) Range(start, end int64) (index.Iterator, error) {
	var out []index.Entry
	if start <= end {
		m.tree.AscendGreaterOrEqual(item{key: start}, func(it item) bool {
			if it.key > end {
				return false
			}
			out = append(out, index.Entry{Key: it.key, Handle: it.handle})
			return true
		})
	}
	return index.NewSliceIterator(out), nil
}
