package source

// csv.go reads delimited text exported from spreadsheet tools. It handles the
// usual export artifacts: a UTF-8 BOM from Windows programs, invalid UTF-8
// bytes, ragged rows, padded cells and the ="..." or '00123 forms used to
// keep leading zeros.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetconv/internal/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads all records of a CSV document.
func ReadCSV(r io.Reader, opts Options) (core.Grid, error) {
	data, err := readAll(r, opts.MaxBytes)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("\uFFFD"))
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return toGrid(rows, CleanCell), nil
}

// CleanCell trims surrounding whitespace, then unwraps Excel's formula text
// form (="00123" or =123) and drops the leading ' that marks a cell as text.
// Thousands separators are kept: "1,234" may be a list cell.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3:
		return s[2 : len(s)-1]
	case strings.HasPrefix(s, "=") && len(s) > 1 && isPlainNumber(s[1:]):
		return s[1:]
	case strings.HasPrefix(s, "'") && len(s) > 1:
		return s[1:]
	}
	return s
}

func isPlainNumber(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && c != '.' && c != '-' {
			return false
		}
	}
	return s != ""
}
