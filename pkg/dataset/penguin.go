package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Species is a penguin species label.
type Species string

const (
	Adelie    Species = "Adelie"
	Gentoo    Species = "Gentoo"
	Chinstrap Species = "Chinstrap"
)

// AllSpecies lists the known species in display order.
var AllSpecies = []Species{Adelie, Gentoo, Chinstrap}

// ParseSpecies returns the species with the given label.
func ParseSpecies(s string) (Species, error) {
	for _, sp := range AllSpecies {
		if string(sp) == s {
			return sp, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSpecies, s)
}

func (s Species) bit() SpeciesSet {
	for i, sp := range AllSpecies {
		if sp == s {
			return 1 << i
		}
	}
	return 0
}

// SpeciesSet is a set of species stored as a bitmask.
// The zero value is the empty set.
type SpeciesSet uint8

// AllSpeciesSet contains every known species.
const AllSpeciesSet SpeciesSet = 1<<3 - 1

// NewSpeciesSet builds a set from the given species. Unknown labels are
// ignored.
func NewSpeciesSet(species ...Species) SpeciesSet {
	var set SpeciesSet
	for _, sp := range species {
		set |= sp.bit()
	}
	return set
}

// ParseSpeciesSet parses species labels into a set. An empty slice yields
// the empty set.
func ParseSpeciesSet(labels []string) (SpeciesSet, error) {
	var set SpeciesSet
	for _, l := range labels {
		sp, err := ParseSpecies(strings.TrimSpace(l))
		if err != nil {
			return 0, err
		}
		set |= sp.bit()
	}
	return set, nil
}

// Has reports whether s is in the set.
func (set SpeciesSet) Has(s Species) bool {
	b := s.bit()
	return b != 0 && set&b != 0
}

// With returns the set plus s.
func (set SpeciesSet) With(s Species) SpeciesSet { return set | s.bit() }

// Without returns the set minus s.
func (set SpeciesSet) Without(s Species) SpeciesSet { return set &^ s.bit() }

// IsEmpty reports whether the set has no members.
func (set SpeciesSet) IsEmpty() bool { return set&AllSpeciesSet == 0 }

// Len returns the number of members.
func (set SpeciesSet) Len() int { return len(set.Members()) }

// Members returns the species in the set in display order.
func (set SpeciesSet) Members() []Species {
	out := make([]Species, 0, len(AllSpecies))
	for _, sp := range AllSpecies {
		if set.Has(sp) {
			out = append(out, sp)
		}
	}
	return out
}

// Labels returns the member labels in display order.
func (set SpeciesSet) Labels() []string {
	members := set.Members()
	out := make([]string, len(members))
	for i, sp := range members {
		out[i] = string(sp)
	}
	return out
}

func (set SpeciesSet) String() string {
	return "{" + strings.Join(set.Labels(), ",") + "}"
}

// MarshalJSON encodes the set as a list of labels.
func (set SpeciesSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(set.Labels())
}

// UnmarshalJSON decodes a list of labels.
func (set *SpeciesSet) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	parsed, err := ParseSpeciesSet(labels)
	if err != nil {
		return err
	}
	*set = parsed
	return nil
}

// Attribute names one of the numeric measurement columns.
type Attribute string

const (
	// NoAttribute means no attribute is selected.
	NoAttribute   Attribute = ""
	BillLength    Attribute = "bill_length_mm"
	BillDepth     Attribute = "bill_depth_mm"
	FlipperLength Attribute = "flipper_length_mm"
	BodyMass      Attribute = "body_mass_g"
)

// Attributes lists the numeric attributes in display order.
var Attributes = []Attribute{BillLength, BillDepth, FlipperLength, BodyMass}

// ParseAttribute returns the attribute with the given column name.
// The empty string parses to NoAttribute.
func ParseAttribute(s string) (Attribute, error) {
	if s == "" {
		return NoAttribute, nil
	}
	a := Attribute(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAttribute, s)
	}
	return a, nil
}

// Valid reports whether a is one of the four numeric attributes.
func (a Attribute) Valid() bool {
	for _, known := range Attributes {
		if a == known {
			return true
		}
	}
	return false
}

// Spaced returns the column name with underscores replaced by spaces,
// e.g. "bill length mm".
func (a Attribute) Spaced() string {
	return strings.ReplaceAll(string(a), "_", " ")
}

// Label returns a display label, e.g. "Bill Length (mm)".
func (a Attribute) Label() string {
	switch a {
	case BillLength:
		return "Bill Length (mm)"
	case BillDepth:
		return "Bill Depth (mm)"
	case FlipperLength:
		return "Flipper Length (mm)"
	case BodyMass:
		return "Body Mass (g)"
	default:
		return string(a)
	}
}

// Measurement is a numeric value that may be missing.
type Measurement struct {
	Value float64
	Valid bool
}

// Some returns a present measurement.
func Some(v float64) Measurement { return Measurement{Value: v, Valid: true} }

// Missing returns an absent measurement.
func Missing() Measurement { return Measurement{} }

// String formats the value, or "NA" when missing.
func (m Measurement) String() string {
	if !m.Valid {
		return "NA"
	}
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}

// MarshalJSON encodes a missing value as null.
func (m Measurement) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON decodes null as missing.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Missing()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Some(v)
	return nil
}

// Penguin is one observed individual.
type Penguin struct {
	Species         Species     `json:"species"`
	Island          string      `json:"island"`
	BillLengthMM    Measurement `json:"bill_length_mm"`
	BillDepthMM     Measurement `json:"bill_depth_mm"`
	FlipperLengthMM Measurement `json:"flipper_length_mm"`
	BodyMassG       Measurement `json:"body_mass_g"`
	Sex             string      `json:"sex"`
	Year            int         `json:"year"`
}

// Measure returns the value of a numeric attribute. Unknown attributes
// read as missing.
func (p Penguin) Measure(a Attribute) Measurement {
	switch a {
	case BillLength:
		return p.BillLengthMM
	case BillDepth:
		return p.BillDepthMM
	case FlipperLength:
		return p.FlipperLengthMM
	case BodyMass:
		return p.BodyMassG
	default:
		return Missing()
	}
}
