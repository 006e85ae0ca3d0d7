package store

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// Record layout (RecordSize bytes):
//
//	[0-9]   tconst, zero padded
//	[10-13] float32 average rating
//	[14-17] int32   number of votes
const (
	tconstLen  = 10
	offRating  = tconstLen
	offVotes   = offRating + 4
	RecordSize = offVotes + 4

	handleSize = 4 + 2
)

// Record is one title rating row. NumVotes is the indexed key.
type Record struct {
	Tconst    string
	AvgRating float32
	NumVotes  int32
}

// Key returns the index key of the record.
func (r Record) Key() int64 { return int64(r.NumVotes) }

// Handle locates a record inside the pool. Handles never move.
type Handle struct {
	Block uint32
	Slot  uint16
}

// AppendBinary appends the 6 byte little endian form of h to b.
func (h Handle) AppendBinary(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, h.Block)
	return binary.LittleEndian.AppendUint16(b, h.Slot)
}

// DecodeHandle is the inverse of Handle.AppendBinary.
func DecodeHandle(b []byte) (Handle, error) {
	if len(b) != handleSize {
		return Handle{}, errors.Wrapf(ErrBadHandle, "encoded handle has %d bytes", len(b))
	}
	return Handle{
		Block: binary.LittleEndian.Uint32(b[0:4]),
		Slot:  binary.LittleEndian.Uint16(b[4:6]),
	}, nil
}

// Field names a record column readable through Pool.ReadField.
type Field int

const (
	FieldAvgRating Field = iota
	FieldNumVotes
)

func (f Field) String() string {
	switch f {
	case FieldAvgRating:
		return "averageRating"
	case FieldNumVotes:
		return "numVotes"
	default:
		return "unknown"
	}
}

// ParseField maps a column name to a Field.
func ParseField(name string) (Field, error) {
	switch name {
	case "averageRating", "avgRating":
		return FieldAvgRating, nil
	case "numVotes":
		return FieldNumVotes, nil
	}
	return 0, errors.Wrapf(ErrUnknownField, "%q", name)
}

func encodeRecord(dst []byte, r Record) error {
	if len(r.Tconst) > tconstLen {
		return errors.Wrapf(ErrTconstTooLong, "%q", r.Tconst)
	}
	clear(dst[:tconstLen])
	copy(dst[:tconstLen], r.Tconst)
	binary.LittleEndian.PutUint32(dst[offRating:], math.Float32bits(r.AvgRating))
	binary.LittleEndian.PutUint32(dst[offVotes:], uint32(r.NumVotes))
	return nil
}

func decodeRecord(src []byte) Record {
	return Record{
		Tconst:    string(bytes.TrimRight(src[:tconstLen], "\x00")),
		AvgRating: math.Float32frombits(binary.LittleEndian.Uint32(src[offRating:])),
		NumVotes:  decodeVotes(src),
	}
}

func decodeVotes(src []byte) int32 {
	return int32(binary.LittleEndian.Uint32(src[offVotes:]))
}
