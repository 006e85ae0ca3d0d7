// Package experiment loads the ratings into the record store and the
// indexes, then runs the numbered experiments against them and records
// every measurement.
package experiment

import (
	"io"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/btree-query-bench/ratingidx/config"
	"github.com/btree-query-bench/ratingidx/index"
	"github.com/btree-query-bench/ratingidx/index/bptree"
	"github.com/btree-query-bench/ratingidx/store"
)

// Runner owns the pool, the B+ tree over it and the comparison indexes.
type Runner struct {
	cfg *config.Config
	log *zap.Logger
	rec *Recorder

	pool    *store.Pool
	tree    *bptree.Index
	others  []index.Index
	entries []index.Entry
	maxKey  int64
	loaded  bool
}

func NewRunner(cfg *config.Config, log *zap.Logger, rec *Recorder) (*Runner, error) {
	pool, err := store.NewPool(cfg.Storage.PoolSize, cfg.Storage.BlockSize)
	if err != nil {
		return nil, err
	}
	tree, err := bptree.NewIndex(cfg.Index.Capacity)
	if err != nil {
		return nil, err
	}
	r := &Runner{cfg: cfg, log: log, rec: rec, pool: pool, tree: tree}
	for _, name := range cfg.Index.Backends {
		idx, err := OpenBackend(name, BackendOptions{
			Capacity:   cfg.Index.Capacity,
			LSMDir:     cfg.Index.LSMDir,
			SQLitePath: cfg.Index.SQLitePath,
			Log:        log,
		})
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.others = append(r.others, idx)
	}
	return r, nil
}

func (r *Runner) Pool() *store.Pool { return r.pool }
func (r *Runner) Tree() *bptree.Index { return r.tree }
func (r *Runner) Recorder() *Recorder { return r.rec }
func (r *Runner) Others() []index.Index { return r.others }

// Add stores rec in the pool and indexes it in the B+ tree. The comparison
// indexes receive everything at once in Finish.
func (r *Runner) Add(rec store.Record) error {
	h, err := r.pool.Store(rec)
	if err != nil {
		return err
	}
	if err := r.tree.Insert(rec.Key(), h); err != nil {
		return err
	}
	r.entries = append(r.entries, index.Entry{Key: rec.Key(), Handle: h})
	r.maxKey = max(r.maxKey, rec.Key())
	return nil
}

// Finish bulk loads the comparison indexes and records their load time.
func (r *Runner) Finish() error {
	if r.loaded {
		return nil
	}
	for _, idx := range r.others {
		start := time.Now()
		if err := index.Load(idx, r.entries); err != nil {
			return errors.Wrapf(err, "load %s", idx.Name())
		}
		d := time.Since(start)
		r.log.Info("comparison index loaded", zap.String("index", idx.Name()),
			zap.Int("entries", len(r.entries)), zap.Duration("took", d))
		if err := r.record(Result{Experiment: "load", Structure: idx.Name(), Operation: "BulkLoad",
			LatencyNs: d.Nanoseconds(), Matches: len(r.entries)}); err != nil {
			return err
		}
	}
	r.loaded = true
	return nil
}

func (r *Runner) Close() error {
	var err error
	for _, idx := range r.others {
		err = errors.CombineErrors(err, idx.Close())
	}
	return err
}

func (r *Runner) record(res Result) error {
	if r.rec == nil {
		return nil
	}
	return r.rec.Record(res)
}

// --- Experiment 1 ---

// StorageStats reports the record store's occupancy.
func (r *Runner) StorageStats() (store.PoolStats, error) {
	s := r.pool.Stats()
	r.log.Info("storage",
		zap.Int("records", s.Records),
		zap.Int("record_size", s.RecordSize),
		zap.Int("records_per_block", s.RecordsPerBlock),
		zap.Int("blocks_allocated", s.BlocksAllocated),
		zap.Int("blocks_remaining", s.BlocksRemaining),
		zap.Int("deleted", s.Deleted))
	mem := ReadMem()
	return s, r.record(Result{Experiment: "1", Structure: "pool", Operation: "Footprint",
		BlocksAccessed: s.BlocksAllocated, Matches: s.Records, MemMB: mem.AllocMB, Objects: mem.HeapObjects})
}

// --- Experiment 2 ---

// TreeReport is the shape of the B+ tree.
type TreeReport struct {
	bptree.Stats
	Keys     int
	RootKeys []int64
}

func (r *Runner) TreeStats() (TreeReport, error) {
	t := r.tree.Tree()
	rep := TreeReport{Stats: t.Stats(), Keys: t.Len(), RootKeys: t.RootKeys()}
	r.log.Info("b+ tree",
		zap.Int("capacity", rep.Capacity),
		zap.Int("nodes", rep.NodeCount),
		zap.Int("height", rep.Height),
		zap.Int("keys", rep.Keys),
		zap.Int64s("root", rep.RootKeys))
	return rep, r.record(Result{Experiment: "2", Structure: "bptree", Operation: "Shape",
		NodesAccessed: rep.NodeCount, Matches: rep.Keys})
}

// --- Experiments 3 and 4 ---

// Measurement is one structure's answer to a query.
type Measurement struct {
	Structure      string
	NodesAccessed  int
	BlocksAccessed int
	Matches        int
	AvgRating      float64
	Took           time.Duration
}

type RetrievalReport struct {
	Min, Max   int64
	Tree       Measurement
	BruteForce Measurement
	Others     []Measurement
}

// Retrieval answers "average rating of the titles with min <= numVotes <=
// max" through the B+ tree, through a full block scan and through every
// comparison index.
func (r *Runner) Retrieval(name string, minKey, maxKey int64) (RetrievalReport, error) {
	rep := RetrievalReport{Min: minKey, Max: maxKey}

	start := time.Now()
	hs := slices.Collect(r.tree.Tree().Search(minKey, maxKey))
	avg, err := AverageField(r.pool, hs, store.FieldAvgRating)
	if err != nil {
		return rep, err
	}
	rep.Tree = Measurement{
		Structure:      r.tree.Name(),
		NodesAccessed:  r.tree.Tree().NodesAccessed(),
		BlocksAccessed: DistinctBlocks(hs),
		Matches:        len(hs),
		AvgRating:      avg,
		Took:           time.Since(start),
	}

	start = time.Now()
	scanned := r.pool.Scan(minKey, maxKey)
	avg, err = AverageField(r.pool, scanned, store.FieldAvgRating)
	if err != nil {
		return rep, err
	}
	rep.BruteForce = Measurement{
		Structure:      "bruteforce",
		BlocksAccessed: r.pool.BlocksAccessed(),
		Matches:        len(scanned),
		AvgRating:      avg,
		Took:           time.Since(start),
	}

	if err := r.Finish(); err != nil {
		return rep, err
	}
	for _, idx := range r.others {
		start := time.Now()
		it, err := idx.Range(minKey, maxKey)
		if err != nil {
			return rep, errors.Wrapf(err, "range on %s", idx.Name())
		}
		got, err := index.Collect(it)
		if err != nil {
			return rep, errors.Wrapf(err, "range on %s", idx.Name())
		}
		ohs := make([]store.Handle, len(got))
		for i, e := range got {
			ohs[i] = e.Handle
		}
		avg, err := AverageField(r.pool, ohs, store.FieldAvgRating)
		if err != nil {
			return rep, errors.Wrapf(err, "records from %s", idx.Name())
		}
		m := Measurement{
			Structure:      idx.Name(),
			BlocksAccessed: DistinctBlocks(ohs),
			Matches:        len(got),
			AvgRating:      avg,
			Took:           time.Since(start),
		}
		if m.Matches != rep.Tree.Matches {
			r.log.Warn("result size differs from the b+ tree", zap.String("index", idx.Name()),
				zap.Int("matches", m.Matches), zap.Int("bptree", rep.Tree.Matches))
		}
		rep.Others = append(rep.Others, m)
	}

	for _, m := range append([]Measurement{rep.Tree, rep.BruteForce}, rep.Others...) {
		r.log.Info("retrieval",
			zap.String("structure", m.Structure),
			zap.Int64("min", minKey), zap.Int64("max", maxKey),
			zap.Int("nodes_accessed", m.NodesAccessed),
			zap.Int("blocks_accessed", m.BlocksAccessed),
			zap.Int("matches", m.Matches),
			zap.String("avg_rating", formatAvg(m.AvgRating)),
			zap.Duration("took", m.Took))
		if err := r.record(Result{Experiment: name, Structure: m.Structure, Operation: "Range",
			LatencyNs: m.Took.Nanoseconds(), NodesAccessed: m.NodesAccessed, BlocksAccessed: m.BlocksAccessed,
			Matches: m.Matches, AvgRating: m.AvgRating}); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// --- Experiment 5 ---

type DeleteReport struct {
	Key        int64
	Tree       Measurement
	Height     int
	NodeCount  int
	RootKeys   []int64
	BruteForce Measurement
	Others     []Measurement
}

// DeleteKey removes every record with numVotes == key: from the B+ tree,
// from the record store by a full block scan, and from every comparison
// index.
func (r *Runner) DeleteKey(key int64) (DeleteReport, error) {
	rep := DeleteReport{Key: key}
	if err := r.Finish(); err != nil {
		return rep, err
	}

	t := r.tree.Tree()
	removed := 0
	for range t.Search(key, key) {
		removed++
	}
	start := time.Now()
	if err := r.tree.Delete(key); err != nil {
		return rep, err
	}
	rep.Tree = Measurement{
		Structure:     r.tree.Name(),
		NodesAccessed: t.NodesAccessed(),
		Matches:       removed,
		Took:          time.Since(start),
	}
	rep.Height, rep.NodeCount, rep.RootKeys = t.Height(), t.NodeCount(), t.RootKeys()

	start = time.Now()
	n := r.pool.DeleteKey(key)
	rep.BruteForce = Measurement{
		Structure:      "bruteforce",
		BlocksAccessed: r.pool.BlocksAccessed(),
		Matches:        n,
		Took:           time.Since(start),
	}

	for _, idx := range r.others {
		start := time.Now()
		if err := idx.Delete(key); err != nil {
			return rep, errors.Wrapf(err, "delete on %s", idx.Name())
		}
		rep.Others = append(rep.Others, Measurement{Structure: idx.Name(), Took: time.Since(start)})
	}
	r.entries = slices.DeleteFunc(r.entries, func(e index.Entry) bool { return e.Key == key })

	r.log.Info("b+ tree after delete",
		zap.Int64("key", key),
		zap.Int("nodes", rep.NodeCount),
		zap.Int("height", rep.Height),
		zap.Int64s("root", rep.RootKeys))
	for _, m := range append([]Measurement{rep.Tree, rep.BruteForce}, rep.Others...) {
		r.log.Info("delete",
			zap.String("structure", m.Structure),
			zap.Int("nodes_accessed", m.NodesAccessed),
			zap.Int("blocks_accessed", m.BlocksAccessed),
			zap.Int("deleted", m.Matches),
			zap.Duration("took", m.Took))
		if err := r.record(Result{Experiment: "5", Structure: m.Structure, Operation: "Delete",
			LatencyNs: m.Took.Nanoseconds(), NodesAccessed: m.NodesAccessed, BlocksAccessed: m.BlocksAccessed,
			Matches: m.Matches}); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// --- Experiment 6 ---

func (r *Runner) PrintTree(w io.Writer) error {
	return r.tree.Tree().Dump(w)
}

// ExportTree writes the tree as a Graphviz digraph.
func (r *Runner) ExportTree(w io.Writer) error {
	return r.tree.Tree().ExportDOT(w)
}

// --- Experiment 7 ---

// Workload builds a fresh copy of every structure from the loaded entries
// and runs each workload mix against it, so the shared indexes stay
// untouched. Copies are always in memory.
func (r *Runner) Workload(ops int) error {
	names := append([]string{"bptree"}, r.cfg.Index.Backends...)
	rng := rand.New(rand.NewPCG(r.cfg.Experiments.Seed, 0))

	for _, name := range names {
		before := ReadMem()
		idx, err := OpenBackend(name, BackendOptions{Capacity: r.cfg.Index.Capacity, Log: r.log})
		if err != nil {
			return err
		}
		start := time.Now()
		if err := index.Load(idx, r.entries); err != nil {
			_ = idx.Close()
			return errors.Wrapf(err, "load %s", name)
		}
		perInsert := time.Since(start).Nanoseconds() / int64(max(len(r.entries), 1))
		after := ReadMem()
		if err := r.record(Result{Experiment: "7", Structure: name, Operation: "Footprint_SteadyState",
			LatencyNs: perInsert, MemMB: sub(after.AllocMB, before.AllocMB),
			Objects: sub(after.HeapObjects, before.HeapObjects)}); err != nil {
			_ = idx.Close()
			return err
		}

		for _, w := range Workloads {
			n := ops
			if w == Reporting {
				n = max(ops/100, 1)
			}
			start := time.Now()
			if err := ExecuteWorkload(idx, w, n, r.maxKey, rng); err != nil {
				_ = idx.Close()
				return err
			}
			d := time.Since(start)
			r.log.Info("workload", zap.String("structure", name), zap.String("workload", string(w)),
				zap.Int("ops", n), zap.Duration("took", d))
			if err := r.record(Result{Experiment: "7", Structure: name, Operation: "Workload_" + workloadTag(w),
				LatencyNs: d.Nanoseconds() / int64(n), MemMB: ReadMem().AllocMB}); err != nil {
				_ = idx.Close()
				return err
			}
		}
		if err := idx.Close(); err != nil {
			return err
		}
	}
	return nil
}

func formatAvg(v float64) string { return strconv.FormatFloat(v, 'f', 5, 64) }

func workloadTag(w WorkloadType) string {
	switch w {
	case OLTP:
		return "OLTP"
	case OLAP:
		return "OLAP"
	default:
		return "Range"
	}
}

func sub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
