package dashboard

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vango-dev/penguins/internal/errors"
	"github.com/vango-dev/penguins/internal/render"
	"github.com/vango-dev/penguins/pkg/dataset"
)

// Field names an input the user can change.
type Field string

const (
	FieldSpecies     Field = "selected_species"
	FieldAttribute   Field = "selected_attribute"
	FieldPlotlyBins  Field = "plotly_bin_count"
	FieldSeabornBins Field = "seaborn_bin_count"

	// FieldGrid carries data grid paging and sorting. It is set through
	// GridChange rather than ParseChange.
	FieldGrid Field = "grid"
)

// Fields lists the user-facing input fields.
var Fields = []Field{FieldSpecies, FieldAttribute, FieldPlotlyBins, FieldSeabornBins}

// Input domains.
const (
	DefaultBins    = 10
	MinBins        = 1
	MaxSeabornBins = 50
)

// Inputs is a snapshot of the input state.
type Inputs struct {
	Species     dataset.SpeciesSet `json:"selected_species"`
	Attribute   dataset.Attribute  `json:"selected_attribute"`
	PlotlyBins  int                `json:"plotly_bin_count"`
	SeabornBins int                `json:"seaborn_bin_count"`
}

// DefaultInputs returns the initial selections: every species, bill length,
// and ten bins for both histograms.
func DefaultInputs() Inputs {
	return Inputs{
		Species:     dataset.AllSpeciesSet,
		Attribute:   dataset.BillLength,
		PlotlyBins:  DefaultBins,
		SeabornBins: DefaultBins,
	}
}

// Validate checks every field against its domain.
func (in Inputs) Validate() error {
	if in.Species&^dataset.AllSpeciesSet != 0 {
		return errors.New(errors.CodeInvalidSpecies).WithField(string(FieldSpecies))
	}
	if in.Attribute != dataset.NoAttribute && !in.Attribute.Valid() {
		return errors.New(errors.CodeInvalidAttribute).WithField(string(FieldAttribute))
	}
	if err := checkBins(FieldPlotlyBins, in.PlotlyBins, 0); err != nil {
		return err
	}
	return checkBins(FieldSeabornBins, in.SeabornBins, MaxSeabornBins)
}

// checkBins rejects n below MinBins or above limit. A zero limit leaves
// the count unbounded.
func checkBins(f Field, n, limit int) error {
	if n < MinBins {
		return errors.New(errors.CodeInvalidBinCount).
			WithField(string(f)).
			WithDetail(fmt.Sprintf("Got %d.", n)).
			WithSuggestion(fmt.Sprintf("Pick a value of at least %d", MinBins))
	}
	if limit > 0 && n > limit {
		return errors.New(errors.CodeInvalidBinCount).
			WithField(string(f)).
			WithDetail(fmt.Sprintf("Got %d.", n)).
			WithSuggestion(fmt.Sprintf("Pick a value between %d and %d", MinBins, limit))
	}
	return nil
}

// Change is one validated update to a single field.
type Change struct {
	Field     Field
	Species   dataset.SpeciesSet
	Attribute dataset.Attribute
	Bins      int
	Grid      render.GridState
}

// ParseChange decodes and validates a new value for field. The value is
// the JSON the client sent: a list of labels for species, a string for the
// attribute and an integer for the bin counts.
func ParseChange(field string, raw json.RawMessage) (Change, error) {
	c := Change{Field: Field(field)}
	malformed := func(err error) error {
		return errors.New(errors.CodeMalformedValue).WithField(field).Wrap(err)
	}

	switch c.Field {
	case FieldSpecies:
		var labels []string
		if err := json.Unmarshal(raw, &labels); err != nil {
			return Change{}, malformed(err)
		}
		set, err := dataset.ParseSpeciesSet(labels)
		if err != nil {
			return Change{}, errors.New(errors.CodeInvalidSpecies).WithField(field).Wrap(err)
		}
		c.Species = set

	case FieldAttribute:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Change{}, malformed(err)
		}
		attr, err := dataset.ParseAttribute(s)
		if err != nil {
			return Change{}, errors.New(errors.CodeInvalidAttribute).WithField(field).Wrap(err)
		}
		c.Attribute = attr

	case FieldPlotlyBins, FieldSeabornBins:
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return Change{}, malformed(err)
		}
		limit := 0
		if c.Field == FieldSeabornBins {
			limit = MaxSeabornBins
		}
		if err := checkBins(c.Field, n, limit); err != nil {
			return Change{}, err
		}
		c.Bins = n

	default:
		return Change{}, errors.New(errors.CodeUnknownField).WithField(field)
	}
	return c, nil
}

// ParseChanges parses a field-to-value object. Fields are applied in a
// fixed order so the result does not depend on map iteration. Any invalid
// field rejects the whole set.
func ParseChanges(values map[string]json.RawMessage) ([]Change, error) {
	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	changes := make([]Change, 0, len(fields))
	for _, f := range fields {
		c, err := ParseChange(f, values[f])
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// GridChange validates a data grid state.
func GridChange(state render.GridState) (Change, error) {
	if err := state.Validate(); err != nil {
		return Change{}, errors.New(errors.CodeInvalidGridState).WithField(string(FieldGrid)).Wrap(err)
	}
	return Change{Field: FieldGrid, Grid: state}, nil
}

// SpeciesChange selects species.
func SpeciesChange(set dataset.SpeciesSet) Change {
	return Change{Field: FieldSpecies, Species: set}
}

// AttributeChange selects the attribute.
func AttributeChange(attr dataset.Attribute) Change {
	return Change{Field: FieldAttribute, Attribute: attr}
}

// BinsChange sets one of the bin counts.
func BinsChange(field Field, n int) Change {
	return Change{Field: field, Bins: n}
}

// apply writes the change into in.
func (c Change) apply(in *Inputs) {
	switch c.Field {
	case FieldSpecies:
		in.Species = c.Species
	case FieldAttribute:
		in.Attribute = c.Attribute
	case FieldPlotlyBins:
		in.PlotlyBins = c.Bins
	case FieldSeabornBins:
		in.SeabornBins = c.Bins
	}
}
