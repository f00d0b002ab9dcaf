package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/penguins/internal/config"
	"github.com/vango-dev/penguins/internal/dashboard"
	"github.com/vango-dev/penguins/internal/errors"
	"github.com/vango-dev/penguins/pkg/dataset"
)

func exportCmd() *cobra.Command {
	var (
		species   []string
		attribute string
		format    string
		data      string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered rows to stdout",
		Long: `Write the rows the dashboard would show for a selection.

Rows are kept when their species is selected and, if --attribute is
given, that column has a value.

Examples:
  penguins export --species=Adelie,Gentoo --attribute=bill_length_mm
  penguins export --format=json --data=./penguins.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			set := dataset.AllSpeciesSet
			if cmd.Flags().Changed("species") {
				var err error
				if set, err = dataset.ParseSpeciesSet(species); err != nil {
					return errors.New(errors.CodeInvalidSpecies).WithField("species").Wrap(err)
				}
			}
			attr, err := dataset.ParseAttribute(attribute)
			if err != nil {
				return errors.New(errors.CodeInvalidAttribute).WithField("attribute").Wrap(err)
			}

			cfg := config.New()
			cfg.ApplyEnv()
			if data != "" {
				cfg.Data.Source = data
			}
			table, err := loadTable(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			return writeRows(cmd.OutOrStdout(), dashboard.FilterRows(table, set, attr), format)
		},
	}

	cmd.Flags().StringSliceVar(&species, "species", nil, "Species to keep (default all)")
	cmd.Flags().StringVar(&attribute, "attribute", "", "Drop rows missing this column")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format: csv or json")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Dataset: a CSV path, s3://bucket/key, or empty for the bundled sample")

	return cmd
}

func writeRows(w io.Writer, t *dataset.Table, format string) error {
	switch strings.ToLower(format) {
	case "csv":
		return dataset.WriteCSV(w, t)
	case "json":
		rows := t.Rows()
		if rows == nil {
			rows = []dataset.Penguin{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	default:
		return fmt.Errorf("unknown format %q (want csv or json)", format)
	}
}
