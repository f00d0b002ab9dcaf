package dataset

import "errors"

var (
	// ErrUnknownSpecies is returned for a species label outside AllSpecies.
	ErrUnknownSpecies = errors.New("unknown species")

	// ErrUnknownAttribute is returned for a column name outside Attributes.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrMalformedCSV is returned when the CSV cannot be parsed.
	ErrMalformedCSV = errors.New("malformed penguins CSV")

	// ErrSourceUnavailable is returned when a source cannot be read.
	ErrSourceUnavailable = errors.New("dataset source unavailable")
)
