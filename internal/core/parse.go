package core

// parse.go converts one raw cell value into a typed value.
//
// Built-in types dispatch through the converters table. Columns without a
// built-in type use their ParseFunc. Either way a successful, non-null value
// is then handed to the column's ValidateFunc, whose error overrides the parse.

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// ParseResult is the outcome of parsing a single value.
// Reason is empty on success; Value is nil when the cell holds nothing.
type ParseResult struct {
	Value  any
	Reason string
}

// Failed reports whether the value could not be parsed.
func (r ParseResult) Failed() bool {
	return r.Reason != ""
}

// converter turns a non-null raw value into a typed value.
// ok=false means the raw value is not a valid instance of the type.
type converter func(p parser, raw string) (value any, ok bool)

var converters = map[ValueType]converter{
	TypeText:      convertText,
	TypeNumber:    convertNumber,
	TypeTimestamp: convertTimestamp,
	TypeBoolean:   convertBoolean,
	TypeInteger:   convertInteger,
	TypeUUID:      convertUUID,
	TypeEmail:     convertEmail,
	TypeURL:       convertURL,
}

// parser carries the per-conversion settings the converters depend on.
type parser struct {
	date1904 bool
}

// ParseValue converts raw according to col using the 1900 date system.
// The returned error is non-nil only for a column that has neither a type
// nor a parse function; data problems are reported through ParseResult.
func ParseValue(raw Cell, col Column) (ParseResult, error) {
	return parser{}.parse(raw, col)
}

func (p parser) parse(raw Cell, col Column) (ParseResult, error) {
	if !raw.Valid {
		return ParseResult{}, nil
	}

	var result ParseResult
	switch {
	case col.Type != TypeNone:
		conv, ok := converters[col.Type]
		if !ok {
			return ParseResult{}, fmt.Errorf("%w %q: unknown value type %d", ErrInvalidColumn, col.Key, int(col.Type))
		}
		value, ok := conv(p, raw.Value)
		if !ok {
			return ParseResult{Reason: ReasonInvalid}, nil
		}
		result.Value = value
	case col.Parse != nil:
		value, err := guard(func() (any, error) { return col.Parse(raw.Value) })
		if err != nil {
			return ParseResult{Reason: reasonOf(err)}, nil
		}
		result.Value = value
	default:
		return ParseResult{}, fmt.Errorf("%w %q: no type and no parse function", ErrInvalidColumn, col.Key)
	}

	if result.Value != nil && col.Validate != nil {
		_, err := guard(func() (any, error) { return nil, col.Validate(result.Value) })
		if err != nil {
			return ParseResult{Reason: reasonOf(err)}, nil
		}
	}
	return result, nil
}

// guard runs a user supplied callback, turning a panic into an error.
func guard(fn func() (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("%v", r)
		}
	}()
	return fn()
}

// reasonOf returns the error message used as a conversion reason.
func reasonOf(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return ReasonInvalid
}

func convertText(_ parser, raw string) (any, bool) {
	return raw, true
}

// parseNumber accepts what a spreadsheet would treat as a number:
// surrounding whitespace, sign, decimals and exponents. NaN and infinities are rejected.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func convertNumber(_ parser, raw string) (any, bool) {
	f, ok := parseNumber(raw)
	if !ok {
		return nil, false
	}
	return f, true
}

func convertInteger(_ parser, raw string) (any, bool) {
	f, ok := parseNumber(raw)
	if !ok || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, false
	}
	return int64(f), true
}

// convertTimestamp reads a spreadsheet date serial: whole days since the
// epoch, with the fractional part giving the time of day.
func convertTimestamp(p parser, raw string) (any, bool) {
	serial, ok := parseNumber(raw)
	if !ok {
		return nil, false
	}
	t, err := excelize.ExcelDateToTime(serial, p.date1904)
	if err != nil {
		return nil, false
	}
	return t, true
}

func convertBoolean(_ parser, raw string) (any, bool) {
	switch raw {
	case "1":
		return true, true
	case "0":
		return false, true
	}
	return nil, false
}

func convertUUID(_ parser, raw string) (any, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, false
	}
	return id, true
}

func convertEmail(_ parser, raw string) (any, bool) {
	s := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return nil, false
	}
	return s, true
}

func convertURL(_ parser, raw string) (any, bool) {
	s := strings.TrimSpace(raw)
	u, err := url.ParseRequestURI(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return s, true
}
