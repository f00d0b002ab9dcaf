package render

import (
	"bytes"
	"html/template"
	"io/fs"
	"math"
	"strings"
	"testing"

	"github.com/vango-dev/penguins/pkg/dataset"
)

func sampleTable() *dataset.Table {
	return dataset.NewTable([]dataset.Penguin{
		{Species: dataset.Adelie, Island: "Torgersen", BillLengthMM: dataset.Some(39.1), BillDepthMM: dataset.Some(18.7), BodyMassG: dataset.Some(3750), Year: 2007},
		{Species: dataset.Gentoo, Island: "Biscoe", BillLengthMM: dataset.Missing(), BillDepthMM: dataset.Some(14.1), BodyMassG: dataset.Some(4450), Year: 2007},
		{Species: dataset.Chinstrap, Island: "Dream", BillLengthMM: dataset.Some(46.5), BillDepthMM: dataset.Some(17.9), BodyMassG: dataset.Some(3500), Year: 2007},
	})
}

func TestBins(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		n      int
		want   []int
	}{
		{"empty", nil, 10, nil},
		{"evenly spread", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 5, []int{2, 2, 2, 2, 2}},
		{"max in last bin", []float64{0, 10}, 2, []int{1, 1}},
		{"single bin", []float64{1, 2, 3}, 1, []int{3}},
		{"non-positive n", []float64{1, 2, 3}, 0, []int{3}},
		{"identical values", []float64{4, 4, 4}, 10, []int{3}},
		{"infinite value", []float64{1, math.Inf(1)}, 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bins := Bins(tt.values, tt.n)
			if len(bins) != len(tt.want) {
				t.Fatalf("len(Bins) = %d, want %d", len(bins), len(tt.want))
			}
			total := 0
			for i, b := range bins {
				if b.Count != tt.want[i] {
					t.Errorf("bin %d count = %d, want %d", i, b.Count, tt.want[i])
				}
				if b.Hi <= b.Lo {
					t.Errorf("bin %d is empty: [%v, %v)", i, b.Lo, b.Hi)
				}
				total += b.Count
			}
			if bins != nil && total != len(tt.values) {
				t.Errorf("total count = %d, want %d", total, len(tt.values))
			}
		})
	}
}

func TestBinsClampsCount(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	bins := Bins(values, 5000)
	if len(bins) != MaxBins {
		t.Fatalf("len(Bins(n=5000)) = %d, want %d", len(bins), MaxBins)
	}
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	if total != len(values) {
		t.Errorf("total count = %d, want %d", total, len(values))
	}
}

func TestBinsEdges(t *testing.T) {
	bins := Bins([]float64{10, 20, 30}, 4)
	if bins[0].Lo != 10 || bins[3].Hi != 30 {
		t.Errorf("bins span [%v, %v], want [10, 30]", bins[0].Lo, bins[3].Hi)
	}
	for i := 1; i < len(bins); i++ {
		if bins[i].Lo != bins[i-1].Hi {
			t.Errorf("gap between bin %d and %d", i-1, i)
		}
	}

	one := Bins([]float64{7}, 3)
	if len(one) != 1 || one[0].Lo != 6.5 || one[0].Hi != 7.5 {
		t.Errorf("Bins(single value) = %+v, want one unit-wide bin", one)
	}
}

func TestNewHistogramSpec(t *testing.T) {
	spec := NewHistogramSpec(sampleTable(), dataset.BillLength, 12)
	if spec.Title != "Distribution of bill length mm" {
		t.Errorf("Title = %q", spec.Title)
	}
	if spec.XLabel != "Bill Length Mm" {
		t.Errorf("XLabel = %q", spec.XLabel)
	}
	if len(spec.Values) != 2 || spec.Bins != 12 {
		t.Errorf("Values = %v, Bins = %d", spec.Values, spec.Bins)
	}
}

func TestNewScatterSpec(t *testing.T) {
	spec := NewScatterSpec(sampleTable())
	if len(spec.Groups) != len(dataset.AllSpecies) {
		t.Fatalf("groups = %d, want one per species", len(spec.Groups))
	}
	if spec.Points() != 2 {
		t.Errorf("Points() = %d, want 2 (Gentoo row lacks bill length)", spec.Points())
	}
	for _, g := range spec.Groups {
		if g.Color != SpeciesColors[dataset.Species(g.Name)] {
			t.Errorf("group %s color = %s", g.Name, g.Color)
		}
	}
	if spec.XLabel != "Bill Length (mm)" || spec.YLabel != "Bill Depth (mm)" {
		t.Errorf("labels = %q / %q", spec.XLabel, spec.YLabel)
	}
}

func TestHistogramSVG(t *testing.T) {
	r := NewChartRenderer(WithSize(400, 300))
	out, err := r.Histogram(HistogramSpec{
		Title:  "Distribution of body mass g",
		XLabel: "Body Mass G",
		Values: []float64{3500, 3750, 3800, 4450, 5000},
		Bins:   3,
	})
	if err != nil {
		t.Fatalf("Histogram() error = %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "<svg") {
		t.Fatalf("Histogram() did not return SVG: %.80s", s)
	}
	if !strings.Contains(s, "Distribution of body mass g") {
		t.Error("Histogram() SVG missing title")
	}
}

func TestHistogramLargeBinCount(t *testing.T) {
	r := NewChartRenderer(WithSize(400, 300))
	out, err := r.Histogram(HistogramSpec{
		Title:  "Distribution of body mass g",
		Values: []float64{3500, 3750, 3800, 4450, 5000},
		Bins:   5000,
	})
	if err != nil {
		t.Fatalf("Histogram(5000 bins) error = %v", err)
	}
	if !strings.Contains(string(out), "<svg") {
		t.Errorf("Histogram(5000 bins) did not return SVG: %.80s", out)
	}
}

func TestHistogramIdenticalValues(t *testing.T) {
	r := NewChartRenderer()
	if _, err := r.Histogram(HistogramSpec{Title: "x", Values: []float64{1, 1}, Bins: 10}); err != nil {
		t.Fatalf("Histogram(identical values) error = %v", err)
	}
}

func TestScatterSVG(t *testing.T) {
	r := NewChartRenderer()
	out, err := r.Scatter(NewScatterSpec(sampleTable()))
	if err != nil {
		t.Fatalf("Scatter() error = %v", err)
	}
	if !strings.Contains(string(out), "<svg") {
		t.Fatal("Scatter() did not return SVG")
	}
}

func TestEmptyViewPlaceholder(t *testing.T) {
	r := NewChartRenderer()
	empty := dataset.NewTable(nil)

	hist, err := r.Histogram(NewHistogramSpec(empty, dataset.BillLength, 10))
	if err != nil {
		t.Fatalf("Histogram(empty) error = %v", err)
	}
	scatter, err := r.Scatter(NewScatterSpec(empty))
	if err != nil {
		t.Fatalf("Scatter(empty) error = %v", err)
	}
	for name, out := range map[string]template.HTML{"histogram": hist, "scatter": scatter} {
		if !strings.Contains(string(out), "No data for the current selection") {
			t.Errorf("%s placeholder missing: %s", name, out)
		}
	}
}

func TestTable(t *testing.T) {
	r := NewChartRenderer()
	out, err := r.Table(sampleTable())
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	s := string(out)
	if got := strings.Count(s, "<tr>"); got != 4 {
		t.Errorf("row count = %d, want header + 3", got)
	}
	if !strings.Contains(s, "<td>NA</td>") {
		t.Error("missing values should render as NA")
	}
	if !strings.Contains(s, `data-rows="3"`) {
		t.Error("row total not rendered")
	}

	out, err = r.Table(dataset.NewTable(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "No rows match") {
		t.Error("empty table should say so")
	}
}

func manyRows(n int) *dataset.Table {
	rows := make([]dataset.Penguin, n)
	for i := range rows {
		rows[i] = dataset.Penguin{Species: dataset.Adelie, BodyMassG: dataset.Some(float64(3000 + i))}
	}
	rows[3].BodyMassG = dataset.Missing()
	return dataset.NewTable(rows)
}

func TestPageOf(t *testing.T) {
	table := manyRows(25)

	p := PageOf(table, GridState{})
	if p.Pages != 3 || p.Total != 25 || len(p.Rows) != PageSize {
		t.Fatalf("first page = %d rows, %d pages, %d total", len(p.Rows), p.Pages, p.Total)
	}
	if p.HasPrev() || !p.HasNext() {
		t.Error("first page should only have a next page")
	}

	last := PageOf(table, GridState{Page: 2})
	if len(last.Rows) != 5 || last.HasNext() {
		t.Errorf("last page = %d rows, HasNext = %v", len(last.Rows), last.HasNext())
	}

	clamped := PageOf(table, GridState{Page: 99})
	if clamped.State.Page != 2 {
		t.Errorf("page past the end clamped to %d, want 2", clamped.State.Page)
	}

	empty := PageOf(dataset.NewTable(nil), GridState{Page: 3})
	if empty.Pages != 1 || empty.State.Page != 0 || len(empty.Rows) != 0 {
		t.Errorf("empty grid = %+v", empty)
	}
}

func TestSortMissingLast(t *testing.T) {
	table := manyRows(12)
	for _, desc := range []bool{false, true} {
		p := PageOf(table, GridState{Sort: string(dataset.BodyMass), Desc: desc, Page: 1})
		lastRow := p.Rows[len(p.Rows)-1]
		if lastRow.BodyMassG.Valid {
			t.Errorf("desc=%v: missing value should sort last, got %v", desc, lastRow.BodyMassG)
		}
		first := PageOf(table, GridState{Sort: string(dataset.BodyMass), Desc: desc}).Rows[0]
		want := 3000.0
		if desc {
			want = 3011
		}
		if first.BodyMassG.Value != want {
			t.Errorf("desc=%v: first = %v, want %v", desc, first.BodyMassG.Value, want)
		}
	}

	if table.Row(3).BodyMassG.Valid {
		t.Error("sorting reordered the source table")
	}
}

func TestGridStateValidate(t *testing.T) {
	if err := (GridState{Sort: "species", Page: 1}).Validate(); err != nil {
		t.Errorf("valid state rejected: %v", err)
	}
	if err := (GridState{Page: -1}).Validate(); err == nil {
		t.Error("negative page accepted")
	}
	if err := (GridState{Sort: "wing"}).Validate(); err == nil {
		t.Error("unknown sort column accepted")
	}
}

func TestGrid(t *testing.T) {
	r := NewChartRenderer()
	out, err := r.Grid(manyRows(15), GridState{Page: 1, Sort: "body_mass_g", Desc: true})
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}
	s := string(out)
	for _, want := range []string{
		`data-page="1"`,
		`data-pages="2"`,
		"Page 2 of 2 (15 rows)",
		`class="grid-sort sorted desc" data-sort="body_mass_g"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("Grid() missing %q", want)
		}
	}
}

func TestPage(t *testing.T) {
	var buf bytes.Buffer
	err := Page(&buf, PageData{
		Title:       "Penguin Data",
		SessionID:   "abc",
		Attributes:  []Choice{{Value: "bill_length_mm", Label: "bill_length_mm", Selected: true}},
		Species:     []Choice{{Value: "Adelie", Label: "Adelie", Selected: true}},
		PlotlyBins:  10,
		SeabornBins: 10,
		SeabornMin:  1,
		SeabornMax:  50,
		Outputs:     map[string]template.HTML{"plot1": "<svg id=\"p1\"></svg>"},
		SourceURL:   "https://github.com/example/penguins",
	})
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	s := buf.String()
	for _, want := range []string{
		`data-session="abc"`,
		`<svg id="p1"></svg>`,
		`value="Adelie" checked`,
		`href="https://github.com/example/penguins"`,
		`/static/penguins.js`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("Page() missing %q", want)
		}
	}
}

func TestStatic(t *testing.T) {
	for _, name := range []string{"penguins.js", "penguins.css"} {
		if _, err := fs.Stat(Static(), name); err != nil {
			t.Errorf("static asset %s: %v", name, err)
		}
	}
}
