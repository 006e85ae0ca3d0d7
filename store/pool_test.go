package store

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestStoreAndRead(t *testing.T) {
	p, err := NewPool(1000, 40)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if p.RecordsPerBlock() != 40/RecordSize {
		t.Fatalf("records per block: got %d", p.RecordsPerBlock())
	}

	recs := []Record{
		{"tt0000001", 5.6, 1645},
		{"tt0000002", 6.1, 198},
		{"tt10000002", 7.0, 1645},
	}
	var hs []Handle
	for _, r := range recs {
		h, err := p.Store(r)
		if err != nil {
			t.Fatalf("Store(%v): %v", r, err)
		}
		hs = append(hs, h)
	}
	if hs[0].Block != 0 || hs[1] != (Handle{Block: 0, Slot: 1}) || hs[2].Block != 1 {
		t.Fatalf("unexpected handles %v", hs)
	}
	for i, h := range hs {
		got, err := p.Record(h)
		if err != nil {
			t.Fatalf("Record(%v): %v", h, err)
		}
		if got != recs[i] {
			t.Errorf("Record(%v) = %+v, want %+v", h, got, recs[i])
		}
	}

	rating, err := p.ReadField(hs[1], FieldAvgRating)
	if err != nil {
		t.Fatalf("ReadField: %v", err)
	}
	if float32(rating) != 6.1 {
		t.Errorf("avg rating: got %v", rating)
	}
	votes, _ := p.ReadField(hs[1], FieldNumVotes)
	if votes != 198 {
		t.Errorf("num votes: got %v", votes)
	}
}

func TestStoreErrors(t *testing.T) {
	if _, err := NewPool(100, RecordSize-1); err == nil {
		t.Fatal("expected error for tiny block")
	}
	p, _ := NewPool(RecordSize*2, RecordSize*2)
	if _, err := p.Store(Record{Tconst: "tt000000000001"}); !errors.Is(err, ErrTconstTooLong) {
		t.Fatalf("long tconst: got %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := p.Store(Record{Tconst: "tt1", NumVotes: int32(i)}); err != nil {
			t.Fatalf("Store %d: %v", i, err)
		}
	}
	if _, err := p.Store(Record{Tconst: "tt3"}); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
	if _, err := p.Record(Handle{Block: 9}); !errors.Is(err, ErrBadHandle) {
		t.Fatalf("expected ErrBadHandle, got %v", err)
	}
	if _, err := ParseField("title"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestScanAndDeleteKey(t *testing.T) {
	p, _ := NewPool(10000, RecordSize*3)
	for i, v := range []int32{10, 20, 10, 30, 40, 10, 50} {
		if _, err := p.Store(Record{Tconst: "tt" + string(rune('a'+i)), NumVotes: v}); err != nil {
			t.Fatal(err)
		}
	}

	hs := p.Scan(10, 20)
	if len(hs) != 4 {
		t.Fatalf("Scan(10,20): got %d handles", len(hs))
	}
	if p.BlocksAccessed() != 3 {
		t.Errorf("blocks accessed: got %d", p.BlocksAccessed())
	}

	if n := p.DeleteKey(10); n != 3 {
		t.Fatalf("DeleteKey(10) = %d", n)
	}
	if hs := p.Scan(10, 10); len(hs) != 0 {
		t.Fatalf("deleted records still scanned: %v", hs)
	}
	if _, err := p.Record(Handle{Block: 0, Slot: 0}); !errors.Is(err, ErrDeleted) {
		t.Fatalf("expected ErrDeleted, got %v", err)
	}
	st := p.Stats()
	if st.Records != 4 || st.Deleted != 3 || st.BlocksAllocated != 3 {
		t.Errorf("stats after delete: %+v", st)
	}

	p.DeleteKey(20)
	p.DeleteKey(30)
	if st := p.Stats(); st.BlocksAllocated != 2 {
		t.Errorf("fully deleted block not released: %+v", st)
	}
}

func TestHandleEncoding(t *testing.T) {
	h := Handle{Block: 70000, Slot: 9}
	got, err := DecodeHandle(h.AppendBinary(nil))
	if err != nil || got != h {
		t.Fatalf("DecodeHandle = %v, %v", got, err)
	}
	if _, err := DecodeHandle([]byte{1}); !errors.Is(err, ErrBadHandle) {
		t.Fatalf("short handle: %v", err)
	}
}

func TestSlotLimit(t *testing.T) {
	if _, err := NewPool(2*RecordSize*70000, RecordSize*70000); err == nil {
		t.Fatal("expected error for a block with more slots than a handle addresses")
	}

	slots := math.MaxUint16 + 1
	p, err := NewPool(RecordSize*slots, RecordSize*slots)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	var last Handle
	for i := range slots {
		if last, err = p.Store(Record{Tconst: "tt1", NumVotes: int32(i)}); err != nil {
			t.Fatalf("Store %d: %v", i, err)
		}
	}
	if last != (Handle{Block: 0, Slot: math.MaxUint16}) {
		t.Fatalf("last handle %v", last)
	}
	if rec, err := p.Record(last); err != nil || rec.NumVotes != int32(slots-1) {
		t.Fatalf("Record(%v) = %+v, %v", last, rec, err)
	}
	if _, err := p.Store(Record{Tconst: "tt2"}); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
}

func TestReleasedBlockRoomIsReused(t *testing.T) {
	p, _ := NewPool(RecordSize*4, RecordSize*2)
	var hs []Handle
	for _, v := range []int32{1, 1, 2, 2} {
		h, err := p.Store(Record{Tconst: "tt1", NumVotes: v})
		if err != nil {
			t.Fatalf("Store(%d): %v", v, err)
		}
		hs = append(hs, h)
	}
	if _, err := p.Store(Record{Tconst: "tt1", NumVotes: 3}); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}

	if n := p.DeleteKey(1); n != 2 {
		t.Fatalf("DeleteKey(1) = %d", n)
	}
	if st := p.Stats(); st.BlocksAllocated != 1 || st.BlocksRemaining != 1 {
		t.Fatalf("stats after release: %+v", st)
	}

	h, err := p.Store(Record{Tconst: "tt1", NumVotes: 3})
	if err != nil {
		t.Fatalf("Store after release: %v", err)
	}
	if h != (Handle{Block: 2, Slot: 0}) {
		t.Errorf("new handle %v reuses a released block number", h)
	}
	if _, err := p.Record(hs[0]); !errors.Is(err, ErrDeleted) {
		t.Errorf("stale handle: got %v, want ErrDeleted", err)
	}
	if rec, err := p.Record(hs[2]); err != nil || rec.NumVotes != 2 {
		t.Errorf("Record(%v) = %+v, %v", hs[2], rec, err)
	}

	if got := p.Scan(0, 10); len(got) != 3 || p.BlocksAccessed() != 2 {
		t.Errorf("Scan read %d blocks, found %v", p.BlocksAccessed(), got)
	}
	if st := p.Stats(); st.BlocksAllocated != 2 || st.BlocksRemaining != 0 || st.Records != 3 {
		t.Errorf("stats after reuse: %+v", st)
	}

	if _, err := p.Store(Record{Tconst: "tt1", NumVotes: 4}); err != nil {
		t.Fatalf("Store into the new block: %v", err)
	}
	if _, err := p.Store(Record{Tconst: "tt1", NumVotes: 5}); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
}
