package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

type chartKey struct {
	experiment string
	operation  string
}

// Plot renders one bar chart of latency per structure for every
// (experiment, operation) pair in results and writes them as PNG files to
// dir. It returns the paths written.
func Plot(results []Result, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "experiment: results dir")
	}

	groups := map[chartKey][]Result{}
	var order []chartKey
	for _, res := range results {
		k := chartKey{res.Experiment, res.Operation}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], res)
	}

	var paths []string
	for _, k := range order {
		rs := groups[k]
		if !slices.ContainsFunc(rs, func(r Result) bool { return r.LatencyNs > 0 }) {
			continue
		}
		path := filepath.Join(dir, chartFile(k))
		if err := barChart(rs, fmt.Sprintf("Experiment %s: %s", k.experiment, k.operation), path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func barChart(rs []Result, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "latency (µs)"

	values := make(plotter.Values, len(rs))
	names := make([]string, len(rs))
	for i, r := range rs {
		values[i] = float64(r.LatencyNs) / 1e3
		names[i] = r.Structure
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return errors.Wrapf(err, "experiment: chart %q", title)
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(names...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "experiment: save %s", path)
	}
	return nil
}

func chartFile(k chartKey) string {
	name := strings.ToLower(fmt.Sprintf("exp%s_%s", k.experiment, k.operation))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name) + ".png"
}
