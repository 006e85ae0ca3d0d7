package experiment

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/btree-query-bench/ratingidx/index"
	"github.com/btree-query-bench/ratingidx/index/bptree"
	"github.com/btree-query-bench/ratingidx/index/listindex"
	"github.com/btree-query-bench/ratingidx/index/lsm"
	"github.com/btree-query-bench/ratingidx/index/memtree"
	"github.com/btree-query-bench/ratingidx/index/sqlindex"
	"github.com/btree-query-bench/ratingidx/store"
)

var ErrUnknownBackend = errors.New("experiment: unknown backend")

// BackendOptions configures OpenBackend. Empty paths keep the lsm and
// sqlite backends in memory.
type BackendOptions struct {
	Capacity   int
	LSMDir     string
	SQLitePath string
	Log        *zap.Logger
}

// OpenBackend returns an empty index of the named kind: bptree, lsm,
// memtree, sqlite or list.
func OpenBackend(name string, o BackendOptions) (index.Index, error) {
	switch name {
	case "bptree":
		return bptree.NewIndex(o.Capacity)
	case "lsm":
		return lsm.Open(o.LSMDir, o.Log)
	case "memtree":
		return memtree.New(), nil
	case "sqlite":
		return sqlindex.Open(o.SQLitePath)
	case "list":
		return listindex.NewListIndex(), nil
	}
	return nil, errors.Wrapf(ErrUnknownBackend, "%q", name)
}

// AverageField averages field over the records at hs. An empty hs averages
// to 0.
func AverageField(pool *store.Pool, hs []store.Handle, field store.Field) (float64, error) {
	if len(hs) == 0 {
		return 0, nil
	}
	var total float64
	for _, h := range hs {
		v, err := pool.ReadField(h, field)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total / float64(len(hs)), nil
}

// DistinctBlocks counts the data blocks the handles point into.
func DistinctBlocks(hs []store.Handle) int {
	seen := make(map[uint32]struct{}, len(hs))
	for _, h := range hs {
		seen[h.Block] = struct{}{}
	}
	return len(seen)
}
