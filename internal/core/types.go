package core

import (
	"fmt"
	"log/slog"
)

// Reason codes for per-cell conversion errors.
// Custom parse and validate functions contribute their own error messages verbatim.
const (
	ReasonInvalid  = "invalid"
	ReasonRequired = "required"
)

// Cell is a single sheet cell: either a string or null.
type Cell struct {
	Value string
	Valid bool // false means null
}

// Text returns a non-null cell holding s.
func Text(s string) Cell {
	return Cell{Value: s, Valid: true}
}

// Null returns a null cell.
func Null() Cell {
	return Cell{}
}

// Row is an ordered sequence of cells.
type Row []Cell

// At returns the cell at index i, or null when i is out of range.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Null()
	}
	return r[i]
}

// Grid is a sheet read into memory: row 0 holds the header names.
type Grid []Row

// GridOf builds a Grid from plain strings. Empty strings become null cells,
// which is how sheet readers report blank cells.
func GridOf(rows [][]string) Grid {
	grid := make(Grid, len(rows))
	for i, values := range rows {
		row := make(Row, len(values))
		for j, v := range values {
			if v != "" {
				row[j] = Text(v)
			}
		}
		grid[i] = row
	}
	return grid
}

// Record is one converted row: target property name to parsed value.
// Values are string, float64, int64, bool, time.Time, uuid.UUID,
// []any (list columns) or a nested Record. Null values are never stored.
type Record map[string]any

// ConversionError describes one cell that could not be converted.
type ConversionError struct {
	Reason string `json:"error"`          // ReasonInvalid, ReasonRequired or a custom message
	Row    int    `json:"row"`            // 1-based data row (after any row map translation)
	Column string `json:"column"`         // Column key as it appears in the header
	Value  any    `json:"value"`          // Offending raw value (nil for required errors)
	Type   string `json:"type,omitempty"` // Declared value type, empty for custom parsers
}

func (e ConversionError) Error() string {
	return fmt.Sprintf("row %d, column %q: %s", e.Row, e.Column, e.Reason)
}

// Result is the outcome of converting a grid.
type Result struct {
	Rows   []Record          `json:"rows"`
	Errors []ConversionError `json:"errors"`
}

// Options tunes a single conversion.
type Options struct {
	// ColumnOriented transposes the grid before reading, so that column 0
	// holds the header names and every following column is a record.
	ColumnOriented bool

	// RowMap translates the i-th row seen by the conversion back to its row
	// number in the original source. Error rows are rewritten to RowMap[row-1]+1.
	RowMap []int

	// Date1904 interprets timestamp serials in the 1904 date system.
	Date1904 bool

	// Logger receives a debug summary of the conversion (default: slog.Default()).
	Logger *slog.Logger
}
