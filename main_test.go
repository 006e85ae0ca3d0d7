package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/btree-query-bench/ratingidx/config"
)

func writeData(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("tconst\taverageRating\tnumVotes\n")
	for i := range n {
		fmt.Fprintf(&b, "tt%07d\t%.1f\t%d\n", i, float64(i%10)+0.5, i%50)
	}
	path := filepath.Join(dir, "data.tsv")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Data.Path = writeData(t, dir, 300)
	cfg.Data.ResultsDir = filepath.Join(dir, "results")
	cfg.Storage.PoolSize = 1 << 20
	cfg.Index.Capacity = 5
	cfg.Index.Backends = []string{"memtree", "list"}
	cfg.Experiments.Ranges = []config.Range{{Min: 7, Max: 7}, {Min: 10, Max: 20}}
	cfg.Experiments.DeleteKey = 7
	cfg.Experiments.WorkloadOps = 100
	return cfg
}

func TestRunList(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	if err := run(cfg, zaptest.NewLogger(t), "1,2,3,4,5,6,7", true, strings.NewReader(""), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Level 0:") {
		t.Errorf("tree dump missing from output:\n%s", out.String())
	}
	for _, name := range []string{"results.csv", "tree.dot"} {
		if _, err := os.Stat(filepath.Join(cfg.Data.ResultsDir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	charts, _ := filepath.Glob(filepath.Join(cfg.Data.ResultsDir, "*.png"))
	if len(charts) == 0 {
		t.Error("no charts written")
	}

	if err := run(testConfig(t), zaptest.NewLogger(t), "1,x", false, strings.NewReader(""), &out); err == nil {
		t.Error("expected error for a bad -run list")
	}
	if err := run(testConfig(t), zaptest.NewLogger(t), "9", false, strings.NewReader(""), &out); err == nil {
		t.Error("expected error for an unknown experiment")
	}
}

func TestMenu(t *testing.T) {
	cfg := testConfig(t)
	// Invalid choices are skipped; 5 reads the key to delete.
	in := strings.NewReader("0\nabc\n2\n5\n11\n3\n8\n1\n")
	var out bytes.Buffer
	if err := run(cfg, zaptest.NewLogger(t), "", false, in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := strings.Count(out.String(), "Run experiment:"); n != 6 {
		t.Errorf("menu shown %d times, want 6:\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "3: Experiment 3 (retrieve 7..7)") {
		t.Errorf("menu does not show the configured range:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Enter key to delete [7]:") {
		t.Errorf("delete prompt missing:\n%s", out.String())
	}

	data, err := os.ReadFile(filepath.Join(cfg.Data.ResultsDir, "results.csv"))
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if !strings.Contains(string(data), "5,bptree,Delete") || !strings.Contains(string(data), "3,bptree,Range") {
		t.Errorf("results.csv:\n%s", data)
	}
}
