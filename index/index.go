// Package index defines the interface shared by every index that the
// experiments compare against each other.
package index

import "github.com/btree-query-bench/ratingidx/store"

// Index maps an int64 key to the handles of the records carrying it.
// Duplicate keys accumulate handles in insertion order.
type Index interface {
	Insert(key int64, h store.Handle) error
	// Delete removes the key and all of its handles. Deleting an absent key
	// is not an error.
	Delete(key int64) error
	// Range iterates the handles of keys in [start, end] in ascending key
	// order. start > end yields nothing.
	Range(start, end int64) (Iterator, error)
	Name() string
	Close() error
}

// Iterator walks the result of a range query one handle at a time.
type Iterator interface {
	Next() bool
	Key() int64
	Handle() store.Handle
	Error() error
	Close() error
}

// Loader is implemented by indexes with a bulk insert path.
type Loader interface {
	Load(entries []Entry) error
}

// Load inserts entries in order, through idx's Loader when it has one.
func Load(idx Index, entries []Entry) error {
	if l, ok := idx.(Loader); ok {
		return l.Load(entries)
	}
	for _, e := range entries {
		if err := idx.Insert(e.Key, e.Handle); err != nil {
			return err
		}
	}
	return nil
}
