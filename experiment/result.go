package experiment

import (
	"encoding/csv"
	"io"
	"runtime"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Result is one measured operation on one structure.
type Result struct {
	Experiment     string
	Structure      string
	Operation      string
	LatencyNs      int64
	NodesAccessed  int
	BlocksAccessed int
	Matches        int
	AvgRating      float64
	MemMB          uint64
	Objects        uint64
}

var header = []string{
	"Experiment", "Structure", "Operation", "LatencyNs",
	"NodesAccessed", "BlocksAccessed", "Matches", "AvgRating", "MemMB", "HeapObjects",
}

type MemoryStats struct {
	AllocMB      uint64
	TotalAllocMB uint64
	HeapObjects  uint64
}

// ReadMem reports live heap usage after a forced GC.
func ReadMem() MemoryStats {
	var m runtime.MemStats
	// Force GC to ensure we measure actual live data, not garbage
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		HeapObjects:  m.HeapObjects,
	}
}

// Recorder keeps every result and streams it as a CSV row.
type Recorder struct {
	w       *csv.Writer
	results []Result
}

// NewRecorder writes the header to w. A nil w only collects.
func NewRecorder(w io.Writer) (*Recorder, error) {
	r := &Recorder{}
	if w == nil {
		return r, nil
	}
	r.w = csv.NewWriter(w)
	if err := r.w.Write(header); err != nil {
		return nil, errors.Wrap(err, "experiment: write header")
	}
	return r, nil
}

func (r *Recorder) Record(res Result) error {
	r.results = append(r.results, res)
	if r.w == nil {
		return nil
	}
	err := r.w.Write([]string{
		res.Experiment,
		res.Structure,
		res.Operation,
		strconv.FormatInt(res.LatencyNs, 10),
		strconv.Itoa(res.NodesAccessed),
		strconv.Itoa(res.BlocksAccessed),
		strconv.Itoa(res.Matches),
		strconv.FormatFloat(res.AvgRating, 'f', 5, 64),
		strconv.FormatUint(res.MemMB, 10),
		strconv.FormatUint(res.Objects, 10),
	})
	if err != nil {
		return errors.Wrap(err, "experiment: write result")
	}
	r.w.Flush()
	return r.w.Error()
}

// Results returns everything recorded so far.
func (r *Recorder) Results() []Result { return r.results }
