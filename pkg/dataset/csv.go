package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// missingTokens are the cell values read as a missing measurement.
var missingTokens = map[string]bool{"": true, "NA": true, "NaN": true, "nan": true}

// requiredColumns must be present in the CSV header.
var requiredColumns = []string{
	"species",
	string(BillLength), string(BillDepth), string(FlipperLength), string(BodyMass),
}

// ReadCSV parses a palmerpenguins-style CSV into a table.
// Columns are matched by header name and may appear in any order; island,
// sex and year are optional. A malformed row fails the whole read.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrMalformedCSV)
		}
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformedCSV, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedCSV, col)
		}
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rows []Penguin
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}

		sp, err := ParseSpecies(cell(record, "species"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		p := Penguin{
			Species: sp,
			Island:  cell(record, "island"),
			Sex:     cell(record, "sex"),
		}
		if missingTokens[p.Sex] {
			p.Sex = ""
		}

		for _, attr := range Attributes {
			m, err := parseMeasurement(cell(record, string(attr)))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: column %s: %v", ErrMalformedCSV, line, attr, err)
			}
			switch attr {
			case BillLength:
				p.BillLengthMM = m
			case BillDepth:
				p.BillDepthMM = m
			case FlipperLength:
				p.FlipperLengthMM = m
			case BodyMass:
				p.BodyMassG = m
			}
		}

		if y := cell(record, "year"); y != "" && !missingTokens[y] {
			year, err := strconv.Atoi(y)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: year: %v", ErrMalformedCSV, line, err)
			}
			p.Year = year
		}

		rows = append(rows, p)
	}

	return &Table{rows: rows}, nil
}

func parseMeasurement(s string) (Measurement, error) {
	if missingTokens[s] {
		return Missing(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Missing(), err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return Missing(), fmt.Errorf("non-finite value %q", s)
	}
	return Some(v), nil
}

// WriteCSV writes t in the same format ReadCSV accepts. Missing values are
// written as NA.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}

	var werr error
	t.Each(func(_ int, p Penguin) bool {
		sex := p.Sex
		if sex == "" {
			sex = "NA"
		}
		year := "NA"
		if p.Year != 0 {
			year = strconv.Itoa(p.Year)
		}
		werr = cw.Write([]string{
			string(p.Species), p.Island,
			p.BillLengthMM.String(), p.BillDepthMM.String(),
			p.FlipperLengthMM.String(), p.BodyMassG.String(),
			sex, year,
		})
		return werr == nil
	})
	if werr != nil {
		return werr
	}

	cw.Flush()
	return cw.Error()
}
