package bptree

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/btree"
)

func TestDeleteBorrowMergeCollapse(t *testing.T) {
	tr := sample(t)

	steps := []struct {
		key    int64
		root   []int64
		height int
		nodes  int
		keys   []int64
	}{
		// Separator 20 becomes 30, then [30] borrows 17 from the left.
		{20, []int64{10, 17}, 2, 4, []int64{5, 6, 7, 10, 12, 17, 30}},
		// [17] merges into [10 12].
		{30, []int64{10}, 2, 3, []int64{5, 6, 7, 10, 12, 17}},
		{5, []int64{10}, 2, 3, []int64{6, 7, 10, 12, 17}},
		// [7] borrows 10 from the right.
		{6, []int64{12}, 2, 3, []int64{7, 10, 12, 17}},
		// [10] merges into [12 17] and the root collapses.
		{7, []int64{10, 12, 17}, 1, 1, []int64{10, 12, 17}},
	}
	for _, s := range steps {
		tr.Delete(s.key)
		mustCheck(t, tr)
		if got := tr.RootKeys(); !slices.Equal(got, s.root) {
			t.Fatalf("delete %d: root keys %v, want %v", s.key, got, s.root)
		}
		if tr.Height() != s.height || tr.NodeCount() != s.nodes {
			t.Fatalf("delete %d: height %d nodes %d, want %d and %d",
				s.key, tr.Height(), tr.NodeCount(), s.height, s.nodes)
		}
		if got := collect(tr, 0, 100); !slices.Equal(got, s.keys) {
			t.Fatalf("delete %d: keys %v, want %v", s.key, got, s.keys)
		}
	}

	for _, k := range []int64{10, 12, 17} {
		tr.Delete(k)
		mustCheck(t, tr)
	}
	if tr.Height() != 0 || tr.NodeCount() != 0 || tr.Len() != 0 {
		t.Fatalf("emptied tree: %+v", tr.Stats())
	}
	tr.Insert(42, 42)
	mustCheck(t, tr)
	if got := collect(tr, 42, 42); !slices.Equal(got, []int64{42}) {
		t.Fatalf("reuse after emptying: %v", got)
	}
}

func TestDeleteAbsent(t *testing.T) {
	tr := sample(t)
	before := tr.Stats()
	for _, k := range []int64{-1, 8, 11, 100} {
		tr.Delete(k)
	}
	mustCheck(t, tr)
	after := tr.Stats()
	after.LastTraversalNodeCount = before.LastTraversalNodeCount
	if after != before {
		t.Fatalf("absent deletes changed the tree: %+v -> %+v", before, after)
	}
	if tr.Len() != 8 {
		t.Fatalf("Len: got %d", tr.Len())
	}
}

func TestInsertDeleteRoundTrip(t *testing.T) {
	for _, capacity := range []int{3, 4, 5, 25} {
		t.Run(fmt.Sprint("capacity=", capacity), func(t *testing.T) {
			tr, _ := New[int](capacity)
			const n = 2000
			for i := range n {
				tr.Insert(int64(i), i)
			}
			mustCheck(t, tr)
			if got := collect(tr, 0, n); len(got) != n {
				t.Fatalf("got %d handles, want %d", len(got), n)
			}
			// Delete from both ends towards the middle.
			for i := range n / 2 {
				tr.Delete(int64(i))
				tr.Delete(int64(n - 1 - i))
			}
			mustCheck(t, tr)
			if tr.Len() != 0 || tr.NodeCount() != 0 || tr.Height() != 0 {
				t.Fatalf("after deleting everything: %+v len=%d", tr.Stats(), tr.Len())
			}
		})
	}
}

// TestAgainstModel runs random inserts, deletes and range searches and
// compares every result with an ordered model.
func TestAgainstModel(t *testing.T) {
	for capacity := 3; capacity <= 8; capacity++ {
		t.Run(fmt.Sprint("capacity=", capacity), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(uint64(capacity), 7))
			tr, _ := New[int](capacity)
			keys := btree.NewOrderedG[int64](4)
			handles := map[int64][]int{}

			const keySpace = 300
			for op := range 5000 {
				k := rng.Int64N(keySpace)
				switch r := rng.IntN(10); {
				case r < 6:
					tr.Insert(k, op)
					keys.ReplaceOrInsert(k)
					handles[k] = append(handles[k], op)
				case r < 9:
					tr.Delete(k)
					keys.Delete(k)
					delete(handles, k)
				default:
					lo := rng.Int64N(keySpace)
					hi := lo + rng.Int64N(60)
					var want []int
					keys.AscendRange(lo, hi+1, func(k int64) bool {
						want = append(want, handles[k]...)
						return true
					})
					if got := collect(tr, lo, hi); !slices.Equal(got, want) {
						t.Fatalf("op %d: Search(%d, %d) = %v, want %v", op, lo, hi, got, want)
					}
				}
				if err := tr.Check(); err != nil {
					t.Fatalf("op %d: %+v", op, err)
				}
				if tr.Len() != keys.Len() {
					t.Fatalf("op %d: Len %d, model %d", op, tr.Len(), keys.Len())
				}
			}
		})
	}
}

func TestNodeReuse(t *testing.T) {
	tr, _ := New[int](3)
	for i := range 100 {
		tr.Insert(int64(i), i)
	}
	for i := range 100 {
		tr.Delete(int64(i))
	}
	arena := len(tr.nodes)
	for i := range 100 {
		tr.Insert(int64(i), i)
	}
	mustCheck(t, tr)
	if len(tr.nodes) != arena {
		t.Fatalf("arena grew from %d to %d slots", arena, len(tr.nodes))
	}
}
