package core

// convert.go is the entry point: it orients the grid, reads the header,
// converts every data row and translates error rows back to source rows.

import (
	"fmt"
	"log/slog"
)

// Convert turns grid into records according to schema.
//
// Row 0 of the (possibly transposed) grid is the header; rows 1..N-1 are data
// rows, numbered from 1 in error reports. Data problems are collected in
// Result.Errors. The returned error is reserved for schema defects
// (wrapping ErrInvalidColumn), in which case no partial result is returned.
func Convert(grid Grid, schema Schema, opts *Options) (Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	if err := schema.Validate(); err != nil {
		return Result{}, err
	}

	if opts.ColumnOriented {
		grid = Transpose(grid)
	}

	result := Result{
		Rows:   []Record{},
		Errors: []ConversionError{},
	}
	if len(grid) == 0 {
		return result, nil
	}

	rd := reader{
		parser: parser{date1904: opts.Date1904},
		header: MakeHeaderIndex(grid[0]),
		errors: &result.Errors,
	}

	for i := 1; i < len(grid); i++ {
		record, err := rd.read(schema, grid[i], i)
		if err != nil {
			return Result{}, fmt.Errorf("row %d: %w", i, err)
		}
		if record != nil {
			result.Rows = append(result.Rows, record)
		}
	}

	if opts.RowMap != nil {
		remapRows(result.Errors, opts.RowMap)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("sheet converted",
		"data_rows", len(grid)-1,
		"records", len(result.Rows),
		"errors", len(result.Errors),
	)

	return result, nil
}

// remapRows rewrites error rows from conversion positions to source rows.
// Rows without an entry in rowMap are left unchanged.
func remapRows(errs []ConversionError, rowMap []int) {
	for i := range errs {
		pos := errs[i].Row - 1
		if pos < 0 || pos >= len(rowMap) {
			continue
		}
		errs[i].Row = rowMap[pos] + 1
	}
}

// Transpose swaps rows and columns. The width of the first row decides how
// many rows the result has; cells missing from shorter rows become null.
func Transpose(grid Grid) Grid {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return Grid{}
	}
	out := make(Grid, len(grid[0]))
	for i := range out {
		row := make(Row, len(grid))
		for j, src := range grid {
			row[j] = src.At(i)
		}
		out[i] = row
	}
	return out
}
