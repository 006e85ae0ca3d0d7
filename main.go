package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/btree-query-bench/ratingidx/config"
	"github.com/btree-query-bench/ratingidx/experiment"
	"github.com/btree-query-bench/ratingidx/ingest"
)

const menu = `
Run experiment:
1: Experiment 1 (storage)
2: Experiment 2 (B+ tree)
3: Experiment 3 (retrieve %d..%d)
4: Experiment 4 (retrieve %d..%d)
5: Experiment 5 (delete a key)
6: Print tree contents
7: Workload suite
8: Quit
`

func main() {
	configPath := flag.String("config", "", "YAML config file (default: configs/ratingidx.yaml or ratingidx.yaml if present)")
	dataPath := flag.String("data", "", "ratings TSV file, overrides data.path")
	runList := flag.String("run", "", "comma separated experiments to run without the menu, e.g. 1,2,3")
	plotCharts := flag.Bool("plot", false, "render bar charts of the results on exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.Data.Path = *dataPath
	}

	log, err := cfg.Log.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, *runList, *plotCharts, os.Stdin, os.Stdout); err != nil {
		log.Error("run failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger, runList string, plotCharts bool, in io.Reader, out io.Writer) error {
	log.Info("starting application",
		zap.String("data", cfg.Data.Path),
		zap.Int("capacity", cfg.Index.Capacity),
		zap.Int("block_size", cfg.Storage.BlockSize),
		zap.Strings("backends", cfg.Index.Backends))

	if err := os.MkdirAll(cfg.Data.ResultsDir, 0o755); err != nil {
		return errors.Wrap(err, "results dir")
	}
	f, err := os.Create(filepath.Join(cfg.Data.ResultsDir, "results.csv"))
	if err != nil {
		return errors.Wrap(err, "results file")
	}
	defer f.Close()

	rec, err := experiment.NewRecorder(f)
	if err != nil {
		return err
	}
	r, err := experiment.NewRunner(cfg, log, rec)
	if err != nil {
		return err
	}
	defer r.Close()

	if _, err := ingest.LoadFile(cfg.Data.Path, log, r.Add); err != nil {
		return err
	}
	if err := r.Finish(); err != nil {
		return err
	}

	s := &session{cfg: cfg, log: log, r: r, in: bufio.NewScanner(in), out: out}
	if runList != "" {
		for _, field := range strings.Split(runList, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return errors.Wrapf(err, "-run %q", runList)
			}
			if err := s.experiment(n, false); err != nil {
				return err
			}
		}
	} else if err := s.menu(); err != nil {
		return err
	}

	if plotCharts {
		paths, err := experiment.Plot(rec.Results(), cfg.Data.ResultsDir)
		if err != nil {
			return err
		}
		log.Info("charts written", zap.Strings("files", paths))
	}
	return nil
}

type session struct {
	cfg *config.Config
	log *zap.Logger
	r   *experiment.Runner
	in  *bufio.Scanner
	out io.Writer
}

func (s *session) menu() error {
	r3, r4 := s.rangeFor(3), s.rangeFor(4)
	for {
		fmt.Fprintf(s.out, menu, r3.Min, r3.Max, r4.Min, r4.Max)
		line, ok := s.readLine()
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > 8 {
			s.log.Warn("invalid input, please try again", zap.String("input", line))
			continue
		}
		if n == 8 {
			s.log.Info("quitting")
			return nil
		}
		if err := s.experiment(n, true); err != nil {
			return err
		}
	}
}

func (s *session) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

// rangeFor maps experiment 3 to the first configured range, 4 to the
// second, falling back to the last one.
func (s *session) rangeFor(n int) config.Range {
	rs := s.cfg.Experiments.Ranges
	return rs[min(n-3, len(rs)-1)]
}

func (s *session) experiment(n int, interactive bool) error {
	s.log.Info("starting experiment", zap.Int("experiment", n))
	switch n {
	case 1:
		_, err := s.r.StorageStats()
		return err
	case 2:
		_, err := s.r.TreeStats()
		return err
	case 3, 4:
		rg := s.rangeFor(n)
		_, err := s.r.Retrieval(strconv.Itoa(n), rg.Min, rg.Max)
		return err
	case 5:
		key := s.cfg.Experiments.DeleteKey
		if interactive {
			fmt.Fprintf(s.out, "Enter key to delete [%d]: ", key)
			if line, ok := s.readLine(); ok && line != "" {
				k, err := strconv.ParseInt(line, 10, 64)
				if err != nil {
					s.log.Warn("invalid key", zap.String("input", line))
					return nil
				}
				key = k
			}
		}
		s.log.Info("deleting key", zap.Int64("key", key))
		_, err := s.r.DeleteKey(key)
		return err
	case 6:
		if err := s.r.PrintTree(s.out); err != nil {
			return err
		}
		return s.exportTree()
	case 7:
		return s.r.Workload(s.cfg.Experiments.WorkloadOps)
	}
	return errors.Newf("unknown experiment %d", n)
}

// exportTree writes tree.dot next to the results; render it with
// `dot -Tpng tree.dot -o tree.png`.
func (s *session) exportTree() error {
	path := filepath.Join(s.cfg.Data.ResultsDir, "tree.dot")
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "tree export")
	}
	if err := s.r.ExportTree(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "tree export")
	}
	s.log.Info("tree exported", zap.String("file", path))
	return nil
}
