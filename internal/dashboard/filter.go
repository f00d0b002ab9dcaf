package dashboard

import "github.com/vango-dev/penguins/pkg/dataset"

// FilterRows returns the rows of t whose species is in species, dropping
// rows that lack a value for attr when attr is set. Row order is kept and
// t is not modified. An empty species set yields an empty table.
func FilterRows(t *dataset.Table, species dataset.SpeciesSet, attr dataset.Attribute) *dataset.Table {
	return t.Select(func(p dataset.Penguin) bool {
		if !species.Has(p.Species) {
			return false
		}
		return attr == dataset.NoAttribute || p.Measure(attr).Valid
	})
}
