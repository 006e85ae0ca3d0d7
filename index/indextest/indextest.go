// Package indextest holds the behaviour every index.Index must share,
// written once and run against each backend.
package indextest

import (
	"slices"
	"testing"

	"github.com/btree-query-bench/ratingidx/index"
	"github.com/btree-query-bench/ratingidx/store"
)

func h(block uint32, slot uint16) store.Handle { return store.Handle{Block: block, Slot: slot} }

func rangeOf(t *testing.T, idx index.Index, start, end int64) []index.Entry {
	t.Helper()
	it, err := idx.Range(start, end)
	if err != nil {
		t.Fatalf("%s: Range(%d, %d): %v", idx.Name(), start, end, err)
	}
	got, err := index.Collect(it)
	if err != nil {
		t.Fatalf("%s: iterate Range(%d, %d): %v", idx.Name(), start, end, err)
	}
	return got
}

// Run exercises newIndex against the shared contract. newIndex must return
// an empty index; Run closes it.
func Run(t *testing.T, newIndex func(t *testing.T) index.Index) {
	t.Run("RangeOrder", func(t *testing.T) {
		idx := newIndex(t)
		defer idx.Close()

		in := []index.Entry{
			{Key: 30, Handle: h(0, 0)},
			{Key: -5, Handle: h(0, 1)},
			{Key: 10, Handle: h(1, 0)},
			{Key: 20, Handle: h(1, 1)},
			{Key: 10, Handle: h(2, 0)},
		}
		for _, e := range in {
			if err := idx.Insert(e.Key, e.Handle); err != nil {
				t.Fatalf("Insert(%d): %v", e.Key, err)
			}
		}

		want := []index.Entry{
			{Key: 10, Handle: h(1, 0)},
			{Key: 10, Handle: h(2, 0)},
			{Key: 20, Handle: h(1, 1)},
		}
		if got := rangeOf(t, idx, 10, 20); !slices.Equal(got, want) {
			t.Errorf("Range(10, 20) = %v, want %v", got, want)
		}
		if got := rangeOf(t, idx, -100, 100); len(got) != len(in) || got[0].Key != -5 || got[4].Key != 30 {
			t.Errorf("Range(-100, 100) = %v", got)
		}
		if got := rangeOf(t, idx, 20, 10); len(got) != 0 {
			t.Errorf("inverted range returned %v", got)
		}
		if got := rangeOf(t, idx, 11, 19); len(got) != 0 {
			t.Errorf("gap range returned %v", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		idx := newIndex(t)
		defer idx.Close()

		for i := range 50 {
			k := int64(i % 10)
			if err := idx.Insert(k, h(uint32(i), 0)); err != nil {
				t.Fatalf("Insert(%d): %v", k, err)
			}
		}
		if err := idx.Delete(3); err != nil {
			t.Fatalf("Delete(3): %v", err)
		}
		if err := idx.Delete(1000); err != nil {
			t.Fatalf("Delete of an absent key: %v", err)
		}
		if got := rangeOf(t, idx, 3, 3); len(got) != 0 {
			t.Errorf("deleted key still has %v", got)
		}
		got := rangeOf(t, idx, 0, 9)
		if len(got) != 45 {
			t.Fatalf("after delete: %d entries, want 45", len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i-1].Key > got[i].Key {
				t.Fatalf("out of order at %d: %v", i, got[i-1:i+1])
			}
		}

		// A deleted key can be inserted again.
		if err := idx.Insert(3, h(99, 9)); err != nil {
			t.Fatalf("reinsert: %v", err)
		}
		if got := rangeOf(t, idx, 3, 3); !slices.Equal(got, []index.Entry{{Key: 3, Handle: h(99, 9)}}) {
			t.Errorf("reinserted key: %v", got)
		}
	})

	t.Run("Extremes", func(t *testing.T) {
		idx := newIndex(t)
		defer idx.Close()

		const lo, hi = -1 << 62, 1 << 62
		for _, k := range []int64{lo, 0, hi} {
			if err := idx.Insert(k, h(0, 0)); err != nil {
				t.Fatalf("Insert(%d): %v", k, err)
			}
		}
		if got := rangeOf(t, idx, lo, hi); len(got) != 3 || got[0].Key != lo || got[2].Key != hi {
			t.Errorf("Range over extremes = %v", got)
		}
	})
}
