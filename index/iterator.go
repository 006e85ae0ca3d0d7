package index

import "github.com/btree-query-bench/ratingidx/store"

// Entry is one (key, handle) pair.
type Entry struct {
	Key    int64
	Handle store.Handle
}

// SliceIterator iterates a materialized, already ordered result.
type SliceIterator struct {
	data []Entry
	idx  int
}

func NewSliceIterator(data []Entry) *SliceIterator {
	return &SliceIterator{data: data, idx: -1}
}

func (it *SliceIterator) Next() bool           { it.idx++; return it.idx < len(it.data) }
func (it *SliceIterator) Key() int64           { return it.data[it.idx].Key }
func (it *SliceIterator) Handle() store.Handle { return it.data[it.idx].Handle }
func (it *SliceIterator) Error() error         { return nil }
func (it *SliceIterator) Close() error         { return nil }

// Collect drains it and closes it.
func Collect(it Iterator) ([]Entry, error) {
	var out []Entry
	for it.Next() {
		out = append(out, Entry{Key: it.Key(), Handle: it.Handle()})
	}
	err := it.Error()
	if cerr := it.Close(); err == nil {
		err = cerr
	}
	return out, err
}
