package render

import (
	"bytes"
	"cmp"
	"fmt"
	"html/template"
	"slices"
	"strconv"

	"github.com/vango-dev/penguins/pkg/dataset"
)

// PageSize is the number of rows per data grid page.
const PageSize = 10

// GridState is the paging and sorting of the data grid.
type GridState struct {
	Page int    `json:"page"`
	Sort string `json:"sort,omitempty"`
	Desc bool   `json:"desc,omitempty"`
}

// Validate checks that Sort names a dataset column and Page is not
// negative.
func (s GridState) Validate() error {
	if s.Page < 0 {
		return fmt.Errorf("grid page %d is negative", s.Page)
	}
	if s.Sort != "" && !slices.Contains(dataset.Columns, s.Sort) {
		return fmt.Errorf("cannot sort by unknown column %q", s.Sort)
	}
	return nil
}

// GridPage is one page of the sorted grid.
type GridPage struct {
	State GridState
	Rows  []dataset.Penguin
	Total int
	Pages int
}

// HasPrev reports whether an earlier page exists.
func (p GridPage) HasPrev() bool { return p.State.Page > 0 }

// HasNext reports whether a later page exists.
func (p GridPage) HasNext() bool { return p.State.Page+1 < p.Pages }

// PageOf sorts a copy of t by state and slices out the requested page.
// A page past the end is clamped to the last page. The table itself is
// never reordered.
func PageOf(t *dataset.Table, state GridState) GridPage {
	rows := t.Rows()
	if state.Sort != "" {
		SortRows(rows, state.Sort, state.Desc)
	}

	pages := (len(rows) + PageSize - 1) / PageSize
	if pages == 0 {
		pages = 1
	}
	if state.Page >= pages {
		state.Page = pages - 1
	}
	if state.Page < 0 {
		state.Page = 0
	}

	start := state.Page * PageSize
	end := min(start+PageSize, len(rows))
	return GridPage{
		State: state,
		Rows:  rows[start:end],
		Total: len(rows),
		Pages: pages,
	}
}

// SortRows stable-sorts rows by column. Missing values sort last in
// either direction.
func SortRows(rows []dataset.Penguin, column string, desc bool) {
	slices.SortStableFunc(rows, func(a, b dataset.Penguin) int {
		c, aMissing, bMissing := compareColumn(a, b, column)
		switch {
		case aMissing && bMissing:
			return 0
		case aMissing:
			return 1
		case bMissing:
			return -1
		case desc:
			return -c
		default:
			return c
		}
	})
}

func compareColumn(a, b dataset.Penguin, column string) (c int, aMissing, bMissing bool) {
	switch column {
	case "species":
		return cmp.Compare(a.Species, b.Species), false, false
	case "island":
		return cmp.Compare(a.Island, b.Island), a.Island == "", b.Island == ""
	case "sex":
		return cmp.Compare(a.Sex, b.Sex), a.Sex == "", b.Sex == ""
	case "year":
		return cmp.Compare(a.Year, b.Year), a.Year == 0, b.Year == 0
	}
	attr := dataset.Attribute(column)
	ma, mb := a.Measure(attr), b.Measure(attr)
	return cmp.Compare(ma.Value, mb.Value), !ma.Valid, !mb.Valid
}

// cells returns the row values in Columns order.
func cells(p dataset.Penguin) []string {
	sex, year := p.Sex, "NA"
	if sex == "" {
		sex = "NA"
	}
	if p.Year != 0 {
		year = strconv.Itoa(p.Year)
	}
	island := p.Island
	if island == "" {
		island = "NA"
	}
	return []string{
		string(p.Species), island,
		p.BillLengthMM.String(), p.BillDepthMM.String(),
		p.FlipperLengthMM.String(), p.BodyMassG.String(),
		sex, year,
	}
}

type tableData struct {
	Columns []string
	Rows    [][]string
	Total   int
}

type gridData struct {
	tableData
	Page GridPage
}

func toCells(rows []dataset.Penguin) [][]string {
	out := make([][]string, len(rows))
	for i, p := range rows {
		out[i] = cells(p)
	}
	return out
}

// Table renders every row of t as an HTML table.
func (r *ChartRenderer) Table(t *dataset.Table) (template.HTML, error) {
	return execute("table", tableData{
		Columns: dataset.Columns,
		Rows:    toCells(t.Rows()),
		Total:   t.Len(),
	})
}

// Grid renders one sorted page of t with paging controls.
func (r *ChartRenderer) Grid(t *dataset.Table, state GridState) (template.HTML, error) {
	page := PageOf(t, state)
	return execute("grid", gridData{
		tableData: tableData{
			Columns: dataset.Columns,
			Rows:    toCells(page.Rows),
			Total:   page.Total,
		},
		Page: page,
	})
}

func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}
