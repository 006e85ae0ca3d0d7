package bptree

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func collect[V any](t *Tree[V], lo, hi int64) []V {
	var out []V
	for v := range t.Search(lo, hi) {
		out = append(out, v)
	}
	return out
}

func mustCheck(t *testing.T, tr interface{ Check() error }) {
	t.Helper()
	if err := tr.Check(); err != nil {
		t.Fatalf("Check: %+v", err)
	}
}

// sample builds the capacity 3 tree
//
//	      [10 20]
//	[5 6 7] [10 12 17] [20 30]
func sample(t *testing.T) *Tree[int64] {
	t.Helper()
	tr, err := New[int64](3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prev := 0
	for _, k := range []int64{10, 20, 5, 6, 12, 30, 7, 17} {
		tr.Insert(k, k)
		mustCheck(t, tr)
		if tr.Height() < prev {
			t.Fatalf("height dropped from %d to %d inserting %d", prev, tr.Height(), k)
		}
		prev = tr.Height()
	}
	return tr
}

func TestInsertHeightNeverDrops(t *testing.T) {
	for _, c := range []int{3, 4, 7} {
		asc, _ := New[int64](c)
		desc, _ := New[int64](c)
		dup, _ := New[int64](c)
		var ha, hd, hu int
		for i := range int64(500) {
			asc.Insert(i, i)
			desc.Insert(499-i, i)
			dup.Insert(i%13, i)
			for _, step := range []struct {
				tr   *Tree[int64]
				prev *int
			}{{asc, &ha}, {desc, &hd}, {dup, &hu}} {
				if h := step.tr.Height(); h < *step.prev {
					t.Fatalf("capacity %d: height dropped from %d to %d after %d inserts", c, *step.prev, h, i+1)
				} else {
					*step.prev = h
				}
			}
		}
		mustCheck(t, asc)
		mustCheck(t, desc)
		if ha < 3 || hd < 3 {
			t.Errorf("capacity %d: heights %d and %d after 500 keys", c, ha, hd)
		}
		if dup.Len() != 13 {
			t.Errorf("capacity %d: %d distinct keys, want 13", c, dup.Len())
		}
	}
}

func TestNewCapacity(t *testing.T) {
	for _, c := range []int{-1, 0, 1, 2} {
		if _, err := New[int](c); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("New(%d): got %v, want ErrInvalidCapacity", c, err)
		}
	}
	tr, err := New[int](3)
	if err != nil {
		t.Fatalf("New(3): %v", err)
	}
	if tr.Capacity() != 3 || tr.Height() != 0 || tr.NodeCount() != 0 {
		t.Fatalf("fresh tree: %+v", tr.Stats())
	}
}

func TestEmptyTree(t *testing.T) {
	tr, _ := New[int](4)
	if got := collect(tr, 0, 100); len(got) != 0 {
		t.Fatalf("search on empty tree: %v", got)
	}
	tr.Delete(1)
	mustCheck(t, tr)
	if tr.RootKeys() != nil {
		t.Fatalf("root keys on empty tree: %v", tr.RootKeys())
	}
}

func TestInsertShape(t *testing.T) {
	tr := sample(t)

	if tr.Height() != 2 {
		t.Errorf("height: got %d, want 2", tr.Height())
	}
	if tr.NodeCount() != 4 {
		t.Errorf("node count: got %d, want 4", tr.NodeCount())
	}
	if got := tr.RootKeys(); !slices.Equal(got, []int64{10, 20}) {
		t.Errorf("root keys: got %v", got)
	}

	got := collect(tr, 6, 17)
	if want := []int64{6, 7, 10, 12, 17}; !slices.Equal(got, want) {
		t.Errorf("Search(6, 17) = %v, want %v", got, want)
	}
	// root, [5 6 7], [10 12 17] and [20 30] where the scan stops.
	if tr.NodesAccessed() != 4 {
		t.Errorf("nodes accessed: got %d, want 4", tr.NodesAccessed())
	}

	var keys []int64
	for k := range tr.All() {
		keys = append(keys, k)
	}
	if want := []int64{5, 6, 7, 10, 12, 17, 20, 30}; !slices.Equal(keys, want) {
		t.Errorf("All keys = %v, want %v", keys, want)
	}
}

func TestInvertedRange(t *testing.T) {
	tr := sample(t)
	if got := collect(tr, 17, 6); len(got) != 0 {
		t.Fatalf("inverted range returned %v", got)
	}
	if got := collect(tr, 8, 9); len(got) != 0 {
		t.Fatalf("range between keys returned %v", got)
	}
	if got := collect(tr, 31, 1000); len(got) != 0 {
		t.Fatalf("range past the end returned %v", got)
	}
	if got := collect(tr, -5, 5); !slices.Equal(got, []int64{5}) {
		t.Fatalf("Search(-5, 5) = %v", got)
	}
}

func TestDuplicateKeys(t *testing.T) {
	tr, _ := New[string](3)
	for _, k := range []int64{1, 2, 3, 4} {
		tr.Insert(k, "a")
	}
	nodes := tr.NodeCount()
	for _, v := range []string{"b", "c", "d", "e"} {
		tr.Insert(3, v)
	}
	mustCheck(t, tr)
	if tr.NodeCount() != nodes {
		t.Errorf("duplicates changed node count: %d -> %d", nodes, tr.NodeCount())
	}
	if tr.Len() != 4 {
		t.Errorf("Len: got %d, want 4", tr.Len())
	}
	if got := collect(tr, 3, 3); !slices.Equal(got, []string{"a", "b", "c", "d", "e"}) {
		t.Errorf("handles of 3: %v", got)
	}

	tr.Delete(3)
	mustCheck(t, tr)
	if got := collect(tr, 0, 10); !slices.Equal(got, []string{"a", "a", "a"}) {
		t.Errorf("after delete: %v", got)
	}
}

func TestSearchIsLazy(t *testing.T) {
	tr := sample(t)
	seq := tr.Search(5, 30)

	var first []int64
	for v := range seq {
		first = append(first, v)
		if len(first) == 2 {
			break
		}
	}
	if !slices.Equal(first, []int64{5, 6}) {
		t.Fatalf("early stop: %v", first)
	}
	if tr.NodesAccessed() != 2 {
		t.Errorf("nodes accessed after early stop: got %d, want 2", tr.NodesAccessed())
	}

	// The sequence is not consumed by the first loop.
	tr.Insert(25, 25)
	var all []int64
	for v := range seq {
		all = append(all, v)
	}
	if want := []int64{5, 6, 7, 10, 12, 17, 20, 25, 30}; !slices.Equal(all, want) {
		t.Fatalf("second range: %v, want %v", all, want)
	}
}

func TestRangeCursor(t *testing.T) {
	tr, _ := New[int](4)
	tr.Insert(7, 1)
	tr.Insert(7, 2)
	tr.Insert(9, 3)

	it := tr.Range(0, 100)
	var keys []int64
	var vals []int
	for it.Next() {
		keys = append(keys, it.Key())
		vals = append(vals, it.Value())
	}
	if !slices.Equal(keys, []int64{7, 7, 9}) || !slices.Equal(vals, []int{1, 2, 3}) {
		t.Fatalf("cursor: keys %v vals %v", keys, vals)
	}
	if it.Next() {
		t.Fatal("Next after exhaustion returned true")
	}
}

func TestDump(t *testing.T) {
	tr := sample(t)
	var buf bytes.Buffer
	if err := tr.Dump(&buf); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"height=2 nodes=4 keys=8",
		"Level 0:",
		"INTERNAL keys=[10 20]",
		"LEAF keys=[5 6 7] handles=[1 1 1]",
		"LEAF keys=[20 30]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump lacks %q:\n%s", want, out)
		}
	}

	empty, _ := New[int](3)
	buf.Reset()
	if err := empty.Dump(&buf); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !strings.Contains(buf.String(), "(empty tree)") {
		t.Errorf("empty dump: %s", buf.String())
	}
}

func TestExportDOT(t *testing.T) {
	tr := sample(t)
	var buf bytes.Buffer
	if err := tr.ExportDOT(&buf); err != nil {
		t.Fatalf("ExportDOT: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "digraph BPlusTree {") || !strings.HasSuffix(out, "}\n") {
		t.Fatalf("not a digraph:\n%s", out)
	}
	// Three child edges plus two leaf chain edges.
	if n := strings.Count(out, "->"); n != 5 {
		t.Errorf("edges: got %d, want 5", n)
	}
	if n := strings.Count(out, "style=dashed"); n != 2 {
		t.Errorf("leaf chain edges: got %d, want 2", n)
	}
}
