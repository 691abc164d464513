package schema

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetconv/internal/core"
)

// Reasons reported by the compiled validators.
const (
	ReasonNotAllowed = "not allowed"
	ReasonPattern    = "pattern mismatch"
	ReasonOutOfRange = "out of range"
)

var (
	errNotAllowed = errors.New(ReasonNotAllowed)
	errPattern    = errors.New(ReasonPattern)
	errOutOfRange = errors.New(ReasonOutOfRange)
)

// validator compiles oneOf, pattern, min and max into one validate function.
// It returns nil when the column declares none of them.
func (c ColumnDef) validator() (core.ValidateFunc, error) {
	var checks []core.ValidateFunc

	if len(c.OneOf) > 0 {
		checks = append(checks, oneOf(c.OneOf))
	}
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		checks = append(checks, matches(re))
	}
	if c.Min != nil || c.Max != nil {
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return nil, fmt.Errorf("min %v is greater than max %v", *c.Min, *c.Max)
		}
		checks = append(checks, between(c.Min, c.Max))
	}

	switch len(checks) {
	case 0:
		return nil, nil
	case 1:
		return checks[0], nil
	}
	return func(v any) error {
		for _, check := range checks {
			if err := check(v); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func oneOf(allowed []string) core.ValidateFunc {
	return func(v any) error {
		if slices.Contains(allowed, fmt.Sprint(v)) {
			return nil
		}
		return errNotAllowed
	}
}

func matches(re *regexp.Regexp) core.ValidateFunc {
	return func(v any) error {
		if re.MatchString(fmt.Sprint(v)) {
			return nil
		}
		return errPattern
	}
}

// between bounds numbers by value and strings by length. Other values pass.
func between(lo, hi *float64) core.ValidateFunc {
	return func(v any) error {
		var n float64
		switch x := v.(type) {
		case float64:
			n = x
		case int64:
			n = float64(x)
		case string:
			n = float64(utf8.RuneCountInString(x))
		default:
			return nil
		}
		if (lo != nil && n < *lo) || (hi != nil && n > *hi) {
			return errOutOfRange
		}
		return nil
	}
}
