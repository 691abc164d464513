package source

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetconv/internal/core"
)

// ReadXLSX reads one sheet of an XLSX workbook with raw cell values,
// trimmed of surrounding whitespace.
func ReadXLSX(r io.Reader, opts Options) (core.Grid, error) {
	data, err := readAll(r, opts.MaxBytes)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet, err := resolveSheet(f.GetSheetList(), opts.Sheet)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return toGrid(rows, strings.TrimSpace), nil
}

// SheetNames lists the sheets of an XLSX workbook in workbook order.
func SheetNames(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// resolveSheet picks a sheet by name, then by 1-based index.
func resolveSheet(sheets []string, want string) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("%w: workbook has no sheets", ErrSheetNotFound)
	}
	if want == "" {
		return sheets[0], nil
	}
	for _, name := range sheets {
		if name == want {
			return name, nil
		}
	}
	if n, err := strconv.Atoi(want); err == nil && n >= 1 && n <= len(sheets) {
		return sheets[n-1], nil
	}
	return "", fmt.Errorf("%w: %q", ErrSheetNotFound, want)
}
