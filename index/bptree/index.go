package bptree

import (
	"github.com/btree-query-bench/ratingidx/index"
	"github.com/btree-query-bench/ratingidx/store"
)

var _ index.Index = (*Index)(nil)

// Index exposes a Tree of record handles through index.Index.
type Index struct {
	tree *Tree[store.Handle]
}

func NewIndex(capacity int) (*Index, error) {
	t, err := New[store.Handle](capacity)
	if err != nil {
		return nil, err
	}
	return &Index{tree: t}, nil
}

// Tree returns the underlying tree for statistics and dumps.
func (x *Index) Tree() *Tree[store.Handle] { return x.tree }

func (x *Index) Insert(key int64, h store.Handle) error {
	x.tree.Insert(key, h)
	return nil
}

func (x *Index) Delete(key int64) error {
	x.tree.Delete(key)
	return nil
}

func (x *Index) Range(start, end int64) (index.Iterator, error) {
	return handleIterator{x.tree.Range(start, end)}, nil
}

func (x *Index) Name() string { return "bptree" }
func (x *Index) Close() error { return nil }

type handleIterator struct {
	*Iterator[store.Handle]
}

func (it handleIterator) Handle() store.Handle { return it.Value() }
func (it handleIterator) Error() error         { return nil }
func (it handleIterator) Close() error         { return nil }
