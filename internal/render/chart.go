package render

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/vango-dev/penguins/pkg/dataset"
)

// SpeciesColors is the per-species palette shared by every chart.
var SpeciesColors = map[dataset.Species]string{
	dataset.Adelie:    "#1f77b4",
	dataset.Gentoo:    "#ff7f0e",
	dataset.Chinstrap: "#2ca02c",
}

// histogramColor fills histogram bars.
const histogramColor = "#636efa"

// HistogramSpec describes one histogram.
type HistogramSpec struct {
	Title  string
	XLabel string
	Values []float64
	Bins   int
}

// NewHistogramSpec builds the histogram of attr over t.
func NewHistogramSpec(t *dataset.Table, attr dataset.Attribute, bins int) HistogramSpec {
	return HistogramSpec{
		Title:  "Distribution of " + attr.Spaced(),
		XLabel: titleCase(attr.Spaced()),
		Values: t.Values(attr),
		Bins:   bins,
	}
}

// ScatterGroup is one colored point cloud.
type ScatterGroup struct {
	Name  string
	Color string
	X     []float64
	Y     []float64
}

// ScatterSpec describes a scatterplot.
type ScatterSpec struct {
	Title  string
	XLabel string
	YLabel string
	Groups []ScatterGroup
}

// NewScatterSpec plots bill length against bill depth, one group per
// species. Rows missing either value are skipped.
func NewScatterSpec(t *dataset.Table) ScatterSpec {
	spec := ScatterSpec{
		Title:  "Scatterplot by Species",
		XLabel: dataset.BillLength.Label(),
		YLabel: dataset.BillDepth.Label(),
	}
	index := make(map[dataset.Species]int, len(dataset.AllSpecies))
	for _, sp := range dataset.AllSpecies {
		index[sp] = len(spec.Groups)
		spec.Groups = append(spec.Groups, ScatterGroup{Name: string(sp), Color: SpeciesColors[sp]})
	}
	t.Each(func(_ int, p dataset.Penguin) bool {
		if !p.BillLengthMM.Valid || !p.BillDepthMM.Valid {
			return true
		}
		g := &spec.Groups[index[p.Species]]
		g.X = append(g.X, p.BillLengthMM.Value)
		g.Y = append(g.Y, p.BillDepthMM.Value)
		return true
	})
	return spec
}

// Points returns the total number of points across groups.
func (s ScatterSpec) Points() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.X)
	}
	return n
}

// ChartRenderer renders charts to inline SVG with go-chart and tables
// with html/template.
type ChartRenderer struct {
	Width  int
	Height int
}

// Option configures a ChartRenderer.
type Option func(*ChartRenderer)

// WithSize sets the chart dimensions in pixels.
func WithSize(width, height int) Option {
	return func(r *ChartRenderer) {
		r.Width = width
		r.Height = height
	}
}

// NewChartRenderer returns a renderer with 560x360 charts by default.
func NewChartRenderer(opts ...Option) *ChartRenderer {
	r := &ChartRenderer{Width: 560, Height: 360}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Histogram renders spec as stepped bars.
func (r *ChartRenderer) Histogram(spec HistogramSpec) (template.HTML, error) {
	bins := Bins(spec.Values, spec.Bins)
	if len(bins) == 0 {
		return r.placeholder(spec.Title), nil
	}

	// Outline of the bars: up, across and down for every bin.
	xs := make([]float64, 0, 2*len(bins)+2)
	ys := make([]float64, 0, 2*len(bins)+2)
	xs, ys = append(xs, bins[0].Lo), append(ys, 0)
	for _, b := range bins {
		xs = append(xs, b.Lo, b.Hi)
		ys = append(ys, float64(b.Count), float64(b.Count))
	}
	xs, ys = append(xs, bins[len(bins)-1].Hi), append(ys, 0)

	fill := color(histogramColor)
	ch := chart.Chart{
		Title:      spec.Title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 12}},
		XAxis: chart.XAxis{
			Name:  spec.XLabel,
			Range: &chart.ContinuousRange{Min: bins[0].Lo, Max: bins[len(bins)-1].Hi},
		},
		YAxis: chart.YAxis{
			Name:           "count",
			Range:          &chart.ContinuousRange{Min: 0, Max: float64(maxCount(bins)) * 1.1},
			ValueFormatter: intFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    spec.XLabel,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: fill,
					StrokeWidth: 1,
					FillColor:   fill.WithAlpha(170),
				},
			},
		},
	}
	return r.svg(&ch)
}

// Scatter renders spec with one series per non-empty group.
func (r *ChartRenderer) Scatter(spec ScatterSpec) (template.HTML, error) {
	if spec.Points() == 0 {
		return r.placeholder(spec.Title), nil
	}

	var (
		series []chart.Series
		allX   []float64
		allY   []float64
	)
	for _, g := range spec.Groups {
		if len(g.X) == 0 {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    g.Name,
			XValues: g.X,
			YValues: g.Y,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    3,
				DotColor:    color(g.Color),
			},
		})
		allX = append(allX, g.X...)
		allY = append(allY, g.Y...)
	}

	ch := chart.Chart{
		Title:      spec.Title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 12}},
		XAxis:      chart.XAxis{Name: spec.XLabel, Range: paddedRange(allX)},
		YAxis:      chart.YAxis{Name: spec.YLabel, Range: paddedRange(allY)},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return r.svg(&ch)
}

func (r *ChartRenderer) svg(ch *chart.Chart) (template.HTML, error) {
	var buf bytes.Buffer
	if err := ch.Render(chart.SVG, &buf); err != nil {
		return "", fmt.Errorf("render %q: %w", ch.Title, err)
	}
	return template.HTML(buf.String()), nil
}

// placeholder is drawn instead of a chart when there is nothing to plot.
func (r *ChartRenderer) placeholder(title string) template.HTML {
	return template.HTML(fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" class="no-data">`+
			`<text x="50%%" y="24" text-anchor="middle" font-weight="bold">%s</text>`+
			`<text x="50%%" y="50%%" text-anchor="middle" fill="#888">No data for the current selection</text>`+
			`</svg>`,
		r.Width, r.Height, html.EscapeString(title)))
}

// paddedRange spans values with a 5% margin, widening a degenerate range
// so go-chart always sees a non-zero delta.
func paddedRange(values []float64) *chart.ContinuousRange {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func intFormatter(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%v", v)
}

func color(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

// titleCase upper-cases the first letter of every word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
