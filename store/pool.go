// Package store is an append-only, block based record store.
//
// The pool is carved into fixed-size blocks. Records are written back to back
// into the current block; when it is full a new block is allocated. A record
// is addressed by its Handle (block number + slot) for the life of the pool.
// Deletion only tombstones a slot; a block whose records are all deleted is
// released. Its bytes are dropped and its room counts toward new blocks, but
// its number is never reused, so stale handles report ErrDeleted.
package store

import (
	"math"

	"github.com/cockroachdb/errors"
)

var (
	ErrPoolFull      = errors.New("store: pool full")
	ErrBadHandle     = errors.New("store: bad handle")
	ErrDeleted       = errors.New("store: record deleted")
	ErrUnknownField  = errors.New("store: unknown field")
	ErrTconstTooLong = errors.New("store: tconst too long")
)

type block struct {
	data    []byte // nil once released
	n       int    // slots written
	live    int // slots not deleted
	deleted []bool
}

// Pool is the record store. It is not safe for concurrent use.
type Pool struct {
	poolSize  int
	blockSize int
	perBlock  int
	maxBlocks int

	blocks   []*block
	records  int
	deleted  int
	released int

	blocksAccessed int
}

// PoolStats describes the pool's size and occupancy.
type PoolStats struct {
	PoolSize        int
	BlockSize       int
	RecordSize      int
	RecordsPerBlock int
	BlocksAllocated int
	BlocksRemaining int
	Records         int
	Deleted         int
}

// NewPool creates a pool of poolSize bytes split into blockSize byte blocks.
func NewPool(poolSize, blockSize int) (*Pool, error) {
	if blockSize < RecordSize {
		return nil, errors.Newf("store: block size %d smaller than record size %d", blockSize, RecordSize)
	}
	if poolSize < blockSize {
		return nil, errors.Newf("store: pool size %d smaller than block size %d", poolSize, blockSize)
	}
	if perBlock := blockSize / RecordSize; perBlock > math.MaxUint16+1 {
		return nil, errors.Newf("store: block size %d holds %d records, more than %d slots a handle can address",
			blockSize, perBlock, math.MaxUint16+1)
	}
	return &Pool{
		poolSize:  poolSize,
		blockSize: blockSize,
		perBlock:  blockSize / RecordSize,
		maxBlocks: poolSize / blockSize,
	}, nil
}

// Store appends rec and returns its handle.
func (p *Pool) Store(rec Record) (Handle, error) {
	b := p.current()
	if b == nil {
		if len(p.blocks)-p.released >= p.maxBlocks {
			return Handle{}, ErrPoolFull
		}
		b = &block{
			data:    make([]byte, p.blockSize),
			deleted: make([]bool, p.perBlock),
		}
		p.blocks = append(p.blocks, b)
	}
	slot := b.n
	if err := encodeRecord(b.data[slot*RecordSize:], rec); err != nil {
		return Handle{}, err
	}
	b.n++
	b.live++
	p.records++
	return Handle{Block: uint32(len(p.blocks) - 1), Slot: uint16(slot)}, nil
}

// current returns the block still accepting records, or nil.
func (p *Pool) current() *block {
	if len(p.blocks) == 0 {
		return nil
	}
	b := p.blocks[len(p.blocks)-1]
	if b.n == p.perBlock {
		return nil
	}
	return b
}

func (p *Pool) slot(h Handle) ([]byte, error) {
	if int(h.Block) >= len(p.blocks) {
		return nil, errors.Wrapf(ErrBadHandle, "block %d of %d", h.Block, len(p.blocks))
	}
	b := p.blocks[h.Block]
	if int(h.Slot) >= b.n {
		return nil, errors.Wrapf(ErrBadHandle, "slot %d of %d in block %d", h.Slot, b.n, h.Block)
	}
	if b.deleted[h.Slot] {
		return nil, errors.Wrapf(ErrDeleted, "block %d slot %d", h.Block, h.Slot)
	}
	off := int(h.Slot) * RecordSize
	return b.data[off : off+RecordSize], nil
}

// Record returns the record stored at h.
func (p *Pool) Record(h Handle) (Record, error) {
	raw, err := p.slot(h)
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(raw), nil
}

// ReadField reads one numeric column of the record at h.
func (p *Pool) ReadField(h Handle, f Field) (float64, error) {
	rec, err := p.Record(h)
	if err != nil {
		return 0, err
	}
	switch f {
	case FieldAvgRating:
		return float64(rec.AvgRating), nil
	case FieldNumVotes:
		return float64(rec.NumVotes), nil
	}
	return 0, errors.Wrapf(ErrUnknownField, "field %d", int(f))
}

// Scan is the brute force range query: it reads every block and returns the
// handles of live records with minKey <= key <= maxKey in storage order.
func (p *Pool) Scan(minKey, maxKey int64) []Handle {
	var out []Handle
	p.blocksAccessed = 0
	for bi, b := range p.blocks {
		if b.data == nil {
			continue
		}
		p.blocksAccessed++
		for s := 0; s < b.n; s++ {
			if b.deleted[s] {
				continue
			}
			k := int64(decodeVotes(b.data[s*RecordSize:]))
			if k >= minKey && k <= maxKey {
				out = append(out, Handle{Block: uint32(bi), Slot: uint16(s)})
			}
		}
	}
	return out
}

// DeleteKey tombstones every live record whose key equals key and returns
// how many were deleted.
func (p *Pool) DeleteKey(key int64) int {
	n := 0
	p.blocksAccessed = 0
	for _, b := range p.blocks {
		if b.data == nil {
			continue
		}
		p.blocksAccessed++
		for s := 0; s < b.n; s++ {
			if b.deleted[s] || int64(decodeVotes(b.data[s*RecordSize:])) != key {
				continue
			}
			b.deleted[s] = true
			b.live--
			n++
			if b.live == 0 && b.n == p.perBlock {
				b.data = nil
				p.released++
				break
			}
		}
	}
	p.records -= n
	p.deleted += n
	return n
}

// BlocksAccessed reports the blocks read by the last Scan or DeleteKey.
func (p *Pool) BlocksAccessed() int { return p.blocksAccessed }

// RecordsPerBlock is the number of records that fit in one block.
func (p *Pool) RecordsPerBlock() int { return p.perBlock }

func (p *Pool) Stats() PoolStats {
	allocated := len(p.blocks) - p.released
	return PoolStats{
		PoolSize:        p.poolSize,
		BlockSize:       p.blockSize,
		RecordSize:      RecordSize,
		RecordsPerBlock: p.perBlock,
		BlocksAllocated: allocated,
		BlocksRemaining: p.maxBlocks - allocated,
		Records:         p.records,
		Deleted:         p.deleted,
	}
}
