package render

import (
	"html/template"

	"github.com/vango-dev/penguins/pkg/dataset"
)

// Renderer turns views of the dataset into HTML fragments.
// Implementations must not modify the tables they are given.
type Renderer interface {
	Histogram(spec HistogramSpec) (template.HTML, error)
	Scatter(spec ScatterSpec) (template.HTML, error)
	Table(t *dataset.Table) (template.HTML, error)
	Grid(t *dataset.Table, state GridState) (template.HTML, error)
}

var _ Renderer = (*ChartRenderer)(nil)
