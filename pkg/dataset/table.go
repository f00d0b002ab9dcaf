package dataset

// Columns lists the table columns in CSV order.
var Columns = []string{
	"species", "island",
	string(BillLength), string(BillDepth), string(FlipperLength), string(BodyMass),
	"sex", "year",
}

// Table is an immutable, ordered collection of penguins.
// A nil *Table behaves as an empty table.
type Table struct {
	rows []Penguin
}

// NewTable returns a table holding a copy of rows.
func NewTable(rows []Penguin) *Table {
	cp := make([]Penguin, len(rows))
	copy(cp, rows)
	return &Table{rows: cp}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Row returns the i-th row. It panics if i is out of range.
func (t *Table) Row(i int) Penguin {
	return t.rows[i]
}

// Rows returns a copy of all rows.
func (t *Table) Rows() []Penguin {
	if t == nil {
		return nil
	}
	cp := make([]Penguin, len(t.rows))
	copy(cp, t.rows)
	return cp
}

// Each calls fn for every row in order until fn returns false.
func (t *Table) Each(fn func(i int, p Penguin) bool) {
	if t == nil {
		return
	}
	for i, p := range t.rows {
		if !fn(i, p) {
			return
		}
	}
}

// Select returns a new table with the rows for which keep returns true,
// in their original order.
func (t *Table) Select(keep func(Penguin) bool) *Table {
	out := &Table{rows: make([]Penguin, 0, t.Len())}
	t.Each(func(_ int, p Penguin) bool {
		if keep(p) {
			out.rows = append(out.rows, p)
		}
		return true
	})
	return out
}

// Values returns the non-missing values of attr in row order.
func (t *Table) Values(attr Attribute) []float64 {
	vals := make([]float64, 0, t.Len())
	t.Each(func(_ int, p Penguin) bool {
		if m := p.Measure(attr); m.Valid {
			vals = append(vals, m.Value)
		}
		return true
	})
	return vals
}

// CountBySpecies returns the number of rows per species.
func (t *Table) CountBySpecies() map[Species]int {
	counts := make(map[Species]int, len(AllSpecies))
	t.Each(func(_ int, p Penguin) bool {
		counts[p.Species]++
		return true
	})
	return counts
}

// MissingCount returns how many rows lack a value for attr.
func (t *Table) MissingCount(attr Attribute) int {
	n := 0
	t.Each(func(_ int, p Penguin) bool {
		if !p.Measure(attr).Valid {
			n++
		}
		return true
	})
	return n
}
