// Package graph renders the throughput, speedup and efficiency charts of an
// evaluation.
package graph

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/i5heu/GoQueueSweep/pkg/metrics"
)

// Options controls where and how the charts are written.
type Options struct {
	Dir    string
	Format string // file extension understood by plot.Save; default "png"
	Width  vg.Length
	Height vg.Length
}

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.Format == "" {
		o.Format = "png"
	}
	if o.Width == 0 {
		o.Width = 12 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 9 * vg.Inch
	}
	return o
}

type chart struct {
	file    string
	title   string
	yLabel  string
	value   func(metrics.DerivedRow) (float64, bool)
	refLine bool
}

var charts = []chart{
	{
		file:   "throughput",
		title:  "Throughput (ops/s)",
		yLabel: "ops/s",
		value:  func(r metrics.DerivedRow) (float64, bool) { return r.ThroughputOps, true },
	},
	{
		file:    "speedup",
		title:   "Throughput speedup vs 1 thread",
		yLabel:  "speedup",
		value:   func(r metrics.DerivedRow) (float64, bool) { return r.Speedup, r.HasBaseline },
		refLine: true,
	},
	{
		file:    "efficiency",
		title:   "Efficiency = speedup / threads",
		yLabel:  "efficiency",
		value:   func(r metrics.DerivedRow) (float64, bool) { return r.Efficiency, r.HasBaseline },
		refLine: true,
	},
}

var (
	background = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	white      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	refColor   = color.RGBA{R: 160, G: 160, B: 160, A: 255}
)

// Render draws one line per name across thread counts and writes
// throughput, speedup and efficiency charts into opts.Dir, creating it if
// needed. Rows without a single-thread baseline are left out of the speedup
// and efficiency charts. It returns the written paths.
func Render(rows []metrics.DerivedRow, opts Options) ([]string, error) {
	opts = opts.withDefaults()

	series, threads, err := group(rows)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("graph: create output directory %s: %w", opts.Dir, err)
	}

	paths := make([]string, 0, len(charts))
	for _, c := range charts {
		p, err := c.build(series, threads)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(opts.Dir, c.file+"."+opts.Format)
		if err := p.Save(opts.Width, opts.Height, path); err != nil {
			return paths, fmt.Errorf("graph: save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// group splits rows by name, each sorted by thread count, and returns the
// sorted union of thread counts.
func group(rows []metrics.DerivedRow) (map[string][]metrics.DerivedRow, []int, error) {
	series := make(map[string][]metrics.DerivedRow)
	seen := make(map[string]map[int]bool)
	var threads []int

	for _, r := range rows {
		if seen[r.Name] == nil {
			seen[r.Name] = make(map[int]bool)
		}
		if seen[r.Name][r.NThreads] {
			return nil, nil, &metrics.DuplicateError{Name: r.Name, NThreads: r.NThreads}
		}
		seen[r.Name][r.NThreads] = true
		series[r.Name] = append(series[r.Name], r)
		if !slices.Contains(threads, r.NThreads) {
			threads = append(threads, r.NThreads)
		}
	}

	for _, s := range series {
		sort.Slice(s, func(a, b int) bool { return s[a].NThreads < s[b].NThreads })
	}
	sort.Ints(threads)
	return series, threads, nil
}

func (c chart) build(series map[string][]metrics.DerivedRow, threads []int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = c.title
	p.X.Label.Text = "Threads"
	p.Y.Label.Text = c.yLabel
	applyDarkTheme(p)
	p.Add(plotter.NewGrid())

	// Thread counts are spread unevenly, so the X axis is categorical.
	index := make(map[int]float64, len(threads))
	ticks := categoryTicks{}
	for i, n := range threads {
		index[n] = float64(i)
		ticks.positions = append(ticks.positions, float64(i))
		ticks.labels = append(ticks.labels, strconv.Itoa(n))
	}
	p.X.Tick.Marker = ticks

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	colors := plotutil.SoftColors
	shapes := []draw.GlyphDrawer{
		draw.CircleGlyph{},
		draw.SquareGlyph{},
		draw.TriangleGlyph{},
		draw.CrossGlyph{},
		draw.PlusGlyph{},
	}

	for i, name := range names {
		var pts plotter.XYs
		for _, r := range series[name] {
			v, ok := c.value(r)
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			pts = append(pts, plotter.XY{X: index[r.NThreads], Y: v})
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("graph: %s line for %s: %w", c.file, name, err)
		}
		line.Color = colors[i%len(colors)]
		line.Width = vg.Points(2)

		points, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("graph: %s points for %s: %w", c.file, name, err)
		}
		points.GlyphStyle.Radius = vg.Points(4)
		points.Color = colors[i%len(colors)]
		points.Shape = shapes[i%len(shapes)]

		p.Add(line, points)
		p.Legend.Add(name, line, points)
	}

	if c.refLine {
		ref := plotter.NewFunction(func(float64) float64 { return 1.0 })
		ref.Color = refColor
		ref.Width = vg.Points(1)
		ref.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(ref)
		if p.Y.Min > 1 {
			p.Y.Min = 0
		}
		if p.Y.Max < 1 {
			p.Y.Max = 1.1
		}
	}

	if len(threads) > 0 {
		p.X.Min = -0.5
		p.X.Max = float64(len(threads)) - 0.5
	}
	return p, nil
}

func applyDarkTheme(p *plot.Plot) {
	p.BackgroundColor = background
	p.Title.TextStyle.Color = white
	p.X.Label.TextStyle.Color = white
	p.Y.Label.TextStyle.Color = white
	p.X.Color = white
	p.Y.Color = white
	p.X.Tick.Color = white
	p.Y.Tick.Color = white
	p.X.Tick.Label.Color = white
	p.Y.Tick.Label.Color = white
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.TextStyle.Color = white
}

// categoryTicks labels the category positions 0, 1, 2, ... of the X axis.
type categoryTicks struct {
	positions []float64
	labels    []string
}

func (ct categoryTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, pos := range ct.positions {
		if pos >= min && pos <= max {
			ticks = append(ticks, plot.Tick{Value: pos, Label: ct.labels[i]})
		}
	}
	return ticks
}
