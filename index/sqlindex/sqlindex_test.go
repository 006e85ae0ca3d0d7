package sqlindex

import (
	"path/filepath"
	"testing"

	"github.com/btree-query-bench/ratingidx/index"
	"github.com/btree-query-bench/ratingidx/index/indextest"
	"github.com/btree-query-bench/ratingidx/store"
)

func TestSQLIndex(t *testing.T) {
	indextest.Run(t, func(t *testing.T) index.Index {
		s, err := Open("")
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return s
	})
}

func TestLoadOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var entries []index.Entry
	for i := range 1000 {
		entries = append(entries, index.Entry{Key: int64(i % 100), Handle: store.Handle{Block: uint32(i), Slot: uint16(i % 7)}})
	}
	if err := index.Load(s, entries); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	it, err := s.Range(42, 42)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	got, err := index.Collect(it)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d entries for key 42, want 10", len(got))
	}
	for i, e := range got {
		if want := uint32(42 + 100*i); e.Handle.Block != want {
			t.Errorf("entry %d: block %d, want %d", i, e.Handle.Block, want)
		}
	}
}
