// Package outwriter has output and writer logic.
package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
)

// view is one printable collection: a table for humans and plain rows for CSV.
type view struct {
	title     string
	headers   []string
	rows      [][]string // table rows, may carry color codes
	csvHeader []string
	csvRows   [][]string
	empty     string // message printed instead of an empty table
}

var titleColor = color.New(color.Bold)

// printViews dispatches on the configured output format. JSON encodes payload as is,
// CSV writes every view one after another and text renders them as tables.
func printViews(cfg *contract.Config, duration time.Duration, payload any, views ...view) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, payload)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVViews(w, views)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is only available for routes, journeys, report and export")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeTextViews(w, cfg, duration, views)
		}, "Wrote table")
	}
	return nil
}

// writeCSVViews writes a single view as plain CSV. Several views are separated by
// a one-field "# title" record and an empty line.
func writeCSVViews(w io.Writer, views []view) error {
	if len(views) == 1 {
		return writeCSVWithHeader(w, views[0].csvHeader, views[0].csvRows)
	}
	csvWriter := csv.NewWriter(w)
	for i, v := range views {
		if i > 0 {
			csvWriter.Flush()
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := csvWriter.Write([]string{"# " + v.title}); err != nil {
			return err
		}
		if err := writeCSVRecords(csvWriter, v.csvHeader, v.csvRows); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func writeTextViews(w io.Writer, cfg *contract.Config, duration time.Duration, views []view) error {
	for i, v := range views {
		if len(views) > 1 || v.title != "" {
			if i > 0 {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			if _, err := titleColor.Fprintln(w, v.title); err != nil {
				return err
			}
		}
		if len(v.rows) == 0 && v.empty != "" {
			if _, err := fmt.Fprintln(w, v.empty); err != nil {
				return err
			}
			continue
		}
		if err := renderTable(w, v.headers, v.rows); err != nil {
			return err
		}
	}
	if duration > 0 {
		if _, err := fmt.Fprintf(w, "Analysis completed in %v with %d workers. Backend: %s\n", duration, cfg.Workers, cfg.Backend); err != nil {
			return err
		}
	}
	return nil
}
