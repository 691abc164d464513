package schema

// parsers.go holds the named parse functions definitions can refer to with
// "parse: <name>". The built-ins handle the messy values found in exported
// reports: currency amounts, free-form dates and US state names.

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetconv/internal/core"
)

var (
	parsers   = make(map[string]core.ParseFunc)
	parsersMu sync.RWMutex
)

func init() {
	RegisterParser("currency", ParseCurrency)
	RegisterParser("date", ParseDate)
	RegisterParser("us_state", ParseUsState)
	RegisterParser("trim", ParseTrim)
}

// RegisterParser adds a named parse function.
// Panics if the name is already taken.
func RegisterParser(name string, fn core.ParseFunc) {
	parsersMu.Lock()
	defer parsersMu.Unlock()

	if _, exists := parsers[name]; exists {
		panic(fmt.Sprintf("parser already registered: %s", name))
	}
	parsers[name] = fn
}

// LookupParser returns a parse function by name.
func LookupParser(name string) (core.ParseFunc, bool) {
	parsersMu.RLock()
	defer parsersMu.RUnlock()

	fn, ok := parsers[name]
	return fn, ok
}

// ParserNames returns the registered parser names, sorted.
func ParserNames() []string {
	parsersMu.RLock()
	defer parsersMu.RUnlock()

	names := make([]string, 0, len(parsers))
	for name := range parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	errInvalidNumber = errors.New("invalid number")
	errInvalidDate   = errors.New("invalid date")
	errInvalidState  = errors.New("invalid state")
)

// numericRegex matches integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseCurrency reads an amount with currency symbols, thousands separators
// and accounting negatives like "(1,234.50)".
func ParseCurrency(raw string) (any, error) {
	s := strings.TrimSpace(raw)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return nil, errInvalidNumber
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errInvalidNumber
	}
	return n, nil
}

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years more than this many years in the future are moved to the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
		time.RFC3339,
	}
)

// ParseDate reads a date written as text in one of the common US and ISO layouts.
func ParseDate(raw string) (any, error) {
	s := strings.TrimSpace(raw)

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}

	return nil, errInvalidDate
}

// ParseUsState converts a US state name or code to its 2-letter code.
func ParseUsState(raw string) (any, error) {
	s := strings.TrimSpace(raw)

	if code, ok := UsStates[strings.ToLower(s)]; ok {
		return code, nil
	}

	upper := strings.ToUpper(s)
	for _, code := range UsStates {
		if upper == code {
			return code, nil
		}
	}
	return nil, errInvalidState
}

// ParseTrim trims surrounding whitespace. A blank cell yields no value.
func ParseTrim(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	return s, nil
}

// UsStates maps US state full names to their abbreviations.
var UsStates = map[string]string{
	"alabama":              "AL",
	"alaska":               "AK",
	"arizona":              "AZ",
	"arkansas":             "AR",
	"california":           "CA",
	"colorado":             "CO",
	"connecticut":          "CT",
	"delaware":             "DE",
	"district of columbia": "DC",
	"florida":              "FL",
	"georgia":              "GA",
	"hawaii":               "HI",
	"idaho":                "ID",
	"illinois":             "IL",
	"indiana":              "IN",
	"iowa":                 "IA",
	"kansas":               "KS",
	"kentucky":             "KY",
	"louisiana":            "LA",
	"maine":                "ME",
	"maryland":             "MD",
	"massachusetts":        "MA",
	"michigan":             "MI",
	"minnesota":            "MN",
	"mississippi":          "MS",
	"missouri":             "MO",
	"montana":              "MT",
	"nebraska":             "NE",
	"nevada":               "NV",
	"new hampshire":        "NH",
	"new jersey":           "NJ",
	"new mexico":           "NM",
	"new york":             "NY",
	"north carolina":       "NC",
	"north dakota":         "ND",
	"ohio":                 "OH",
	"oklahoma":             "OK",
	"oregon":               "OR",
	"pennsylvania":         "PA",
	"rhode island":         "RI",
	"south carolina":       "SC",
	"south dakota":         "SD",
	"tennessee":            "TN",
	"texas":                "TX",
	"utah":                 "UT",
	"vermont":              "VT",
	"virginia":             "VA",
	"washington":           "WA",
	"west virginia":        "WV",
	"wisconsin":            "WI",
	"wyoming":              "WY",
}
