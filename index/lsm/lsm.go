// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so it can be measured alongside the B+ tree.
//
// Every (key, handle) pair is its own Pebble key: the 8 byte order
// preserving form of the key followed by an 8 byte insertion sequence, so
// duplicates keep their insertion order. The value is the encoded handle.
package lsm

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"

	"github.com/btree-query-bench/ratingidx/index"
	"github.com/btree-query-bench/ratingidx/store"
)

var _ index.Index = (*LSM)(nil)
var _ index.Loader = (*LSM)(nil)

const (
	prefixLen = 8
	keyLen    = prefixLen + 8
)

type LSM struct {
	db  *pebble.DB
	seq uint64
}

// Open opens (or creates) a Pebble database in dir. An empty dir keeps the
// whole database in memory.
func Open(dir string, log *zap.Logger) (*LSM, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := &pebble.Options{
		MemTableSize: 16 << 20,
		// Keep 2 memtables so one can be flushed while the other is active.
		MemTableStopWritesThreshold: 4,
		// L0 compaction trigger.
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
		Logger:                log.Named("pebble").Sugar(),
	}
	if dir == "" {
		opts.FS = vfs.NewMem()
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "lsm: open %q", dir)
	}
	l := &LSM{db: db}
	if err := l.recoverSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// recoverSeq continues the sequence of a reopened database.
func (l *LSM) recoverSeq() error {
	iter, err := l.db.NewIter(nil)
	if err != nil {
		return errors.Wrap(err, "lsm: recover sequence")
	}
	for valid := iter.First(); valid; valid = iter.Next() {
		if k := iter.Key(); len(k) == keyLen {
			if s := binary.BigEndian.Uint64(k[prefixLen:]); s >= l.seq {
				l.seq = s + 1
			}
		}
	}
	return errors.CombineErrors(iter.Error(), iter.Close())
}

func (l *LSM) Name() string { return "lsm" }

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return l.db.Close()
}

func (l *LSM) Insert(key int64, h store.Handle) error {
	if err := l.db.Set(l.nextKey(key), h.AppendBinary(nil), pebble.NoSync); err != nil {
		return errors.Wrap(err, "lsm: insert")
	}
	return nil
}

// Load writes entries in one batch.
func (l *LSM) Load(entries []index.Entry) error {
	b := l.db.NewBatch()
	defer b.Close()
	var val []byte
	for _, e := range entries {
		val = e.Handle.AppendBinary(val[:0])
		if err := b.Set(l.nextKey(e.Key), val, nil); err != nil {
			return errors.Wrap(err, "lsm: load")
		}
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return errors.Wrap(err, "lsm: load commit")
	}
	return nil
}

// Delete drops every entry of key with a single range tombstone.
func (l *LSM) Delete(key int64) error {
	if err := l.db.DeleteRange(encodePrefix(key), prefixEnd(key), pebble.NoSync); err != nil {
		return errors.Wrap(err, "lsm: delete")
	}
	return nil
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (l *LSM) Range(start, end int64) (index.Iterator, error) {
	if start > end {
		return index.NewSliceIterator(nil), nil
	}
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: encodePrefix(start),
		UpperBound: prefixEnd(end),
	})
	if err != nil {
		return nil, errors.Wrap(err, "lsm: range")
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

// ─── Key encoding ─────────────────────────────────────────────────────────────

func (l *LSM) nextKey(key int64) []byte {
	b := make([]byte, keyLen)
	putPrefix(b, key)
	binary.BigEndian.PutUint64(b[prefixLen:], l.seq)
	l.seq++
	return b
}

// putPrefix writes key big-endian with the sign bit flipped, so byte order
// matches numeric order for negative keys too.
func putPrefix(b []byte, key int64) {
	binary.BigEndian.PutUint64(b, uint64(key)^(1<<63))
}

func encodePrefix(key int64) []byte {
	b := make([]byte, prefixLen)
	putPrefix(b, key)
	return b
}

// prefixEnd is the exclusive upper bound of every entry of key.
func prefixEnd(key int64) []byte {
	if key == math.MaxInt64 {
		b := encodePrefix(key)
		for range keyLen - prefixLen + 1 {
			b = append(b, 0xff)
		}
		return b
	}
	return encodePrefix(key + 1)
}

func decodePrefix(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int64
	h     store.Handle
	err   error
}

func (it *rangeIterator) Next() bool {
	if it.err != nil {
		return false
	}
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		return false
	}
	k := it.iter.Key()
	if len(k) != keyLen {
		it.err = errors.Newf("lsm: unexpected key length %d", len(k))
		return false
	}
	it.key = decodePrefix(k)
	it.h, it.err = store.DecodeHandle(it.iter.Value())
	return it.err == nil
}

func (it *rangeIterator) Key() int64           { return it.key }
func (it *rangeIterator) Handle() store.Handle { return it.h }

func (it *rangeIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	return it.iter.Error()
}

func (it *rangeIterator) Close() error { return it.iter.Close() }
