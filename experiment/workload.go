package experiment

import (
	"math/rand/v2"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/ratingidx/index"
	"github.com/btree-query-bench/ratingidx/store"
)

type WorkloadType string

const (
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"
)

var Workloads = []WorkloadType{OLTP, OLAP, Reporting}

// reportingWidth is the key span of one Reporting range.
const reportingWidth = 100

// ExecuteWorkload runs ops operations of the given mix against idx. Point
// lookups are single key ranges; inserted entries point at a synthetic
// block past the end of the pool. Keys are drawn from [0, maxKey].
func ExecuteWorkload(idx index.Index, wType WorkloadType, ops int, maxKey int64, rng *rand.Rand) error {
	if maxKey < 0 {
		maxKey = 0
	}
	synthetic := store.Handle{Block: 1<<32 - 1}
	for i := 0; i < ops; i++ {
		choice := rng.IntN(100)
		key := rng.Int64N(maxKey + 1)

		var err error
		switch wType {
		case OLTP:
			if choice < 90 {
				err = drain(idx, key, key)
			} else {
				err = idx.Insert(key, synthetic)
			}
		case OLAP:
			if choice < 10 {
				err = drain(idx, key, key)
			} else {
				err = idx.Insert(key, synthetic)
			}
		case Reporting:
			err = drain(idx, key, key+reportingWidth)
		default:
			return errors.Newf("experiment: unknown workload %q", wType)
		}
		if err != nil {
			return errors.Wrapf(err, "%s on %s", wType, idx.Name())
		}
	}
	return nil
}

func drain(idx index.Index, start, end int64) error {
	it, err := idx.Range(start, end)
	if err != nil {
		return err
	}
	for it.Next() {
	}
	err = it.Error()
	if cerr := it.Close(); err == nil {
		err = cerr
	}
	return err
}
