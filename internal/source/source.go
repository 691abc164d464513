// Package source reads uploaded files into core grids.
//
// CSV files are read with encoding/csv; XLSX workbooks are opened with
// excelize. Both report blank cells as null and keep raw cell values, so
// date cells arrive as spreadsheet serials for the timestamp type to decode.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/sheetconv/internal/core"
)

var (
	ErrUnknownFormat = errors.New("unknown file format")
	ErrSheetNotFound = errors.New("sheet not found")
	ErrTooLarge      = errors.New("file too large")
	ErrEmptyFile     = errors.New("empty file")
)

// Format identifies a supported file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Options controls how a file is read.
type Options struct {
	// Sheet selects an XLSX sheet by name or 1-based index. Empty means the first sheet.
	Sheet string

	// MaxBytes caps the input size. Zero means no limit.
	MaxBytes int64

	// Comma is the CSV field separator (default ',').
	Comma rune
}

// Read reads r as the given format.
func Read(r io.Reader, format Format, opts Options) (core.Grid, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r, opts)
	case FormatXLSX:
		return ReadXLSX(r, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ParseFormat resolves a format name such as "csv" or "xlsx".
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "csv", "txt":
		return FormatCSV, nil
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// DetectFormat picks a format from a file name, falling back to the content type.
func DetectFormat(filename, contentType string) (Format, error) {
	if ext := filepath.Ext(filename); ext != "" {
		if f, err := ParseFormat(ext); err == nil {
			return f, nil
		}
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch mediaType {
	case "text/csv", "application/csv", "text/plain":
		return FormatCSV, nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: name %q, content type %q", ErrUnknownFormat, filename, contentType)
}

// readAll reads r honoring the size limit.
func readAll(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, maxBytes)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	return data, nil
}

// toGrid converts plain rows, treating empty strings as null.
func toGrid(rows [][]string, clean func(string) string) core.Grid {
	if clean != nil {
		for _, row := range rows {
			for j := range row {
				row[j] = clean(row[j])
			}
		}
	}
	return core.GridOf(rows)
}
