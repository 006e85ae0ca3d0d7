// Package listindex is the no-index baseline: an unsorted slice scanned in
// full for every query.
package listindex

import (
	"cmp"
	"slices"

	"github.com/btree-query-bench/ratingidx/index"
	"github.com/btree-query-bench/ratingidx/store"
)

var _ index.Index = (*ListIndex)(nil)

type ListIndex struct {
	Data []index.Entry
}

func NewListIndex() *ListIndex {
	return &ListIndex{
		Data: make([]index.Entry, 0),
	}
}

func (l *ListIndex) Name() string { return "list" }
func (l *ListIndex) Close() error { return nil }

func (l *ListIndex) Insert(key int64, h store.Handle) error {
	l.Data = append(l.Data, index.Entry{Key: key, Handle: h})
	return nil
}

func (l *ListIndex) Delete(key int64) error {
	l.Data = slices.DeleteFunc(l.Data, func(e index.Entry) bool { return e.Key == key })
	return nil
}

// Range scans every entry, then sorts the matches by key. The sort is
// stable, so duplicates stay in insertion order.
func (l *ListIndex) Range(start, end int64) (index.Iterator, error) {
	var out []index.Entry
	for _, e := range l.Data {
		if e.Key >= start && e.Key <= end {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b index.Entry) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return index.NewSliceIterator(out), nil
}
