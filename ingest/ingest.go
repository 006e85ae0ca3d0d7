// Package ingest reads the title ratings file: tab separated, one header
// row, then tconst, averageRating and numVotes per line.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/btree-query-bench/ratingidx/store"
)

const progressEvery = 200_000

// Load parses records from r and hands each one to fn in file order. It
// returns the number of records passed to fn.
func Load(r io.Reader, log *zap.Logger, fn func(store.Record) error) (int, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = 3
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "ingest: header")
	}

	n := 0
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, errors.Wrapf(err, "ingest: record %d", n+1)
		}
		rec, err := parse(fields)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return n, errors.Wrapf(err, "ingest: line %d", line)
		}
		if err := fn(rec); err != nil {
			return n, err
		}
		n++
		if n%progressEvery == 0 {
			log.Info("reading records", zap.Int("lines", n))
		}
	}
	log.Info("records loaded", zap.Int("records", n))
	return n, nil
}

// LoadFile is Load on the file at path.
func LoadFile(path string, log *zap.Logger, fn func(store.Record) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "ingest")
	}
	defer f.Close()
	return Load(f, log, fn)
}

func parse(fields []string) (store.Record, error) {
	rating, err := strconv.ParseFloat(fields[1], 32)
	if err != nil {
		return store.Record{}, errors.Wrapf(err, "averageRating %q", fields[1])
	}
	votes, err := strconv.ParseInt(fields[2], 10, 32)
	if err != nil {
		return store.Record{}, errors.Wrapf(err, "numVotes %q", fields[2])
	}
	return store.Record{
		Tconst:    fields[0],
		AvgRating: float32(rating),
		NumVotes:  int32(votes),
	}, nil
}
