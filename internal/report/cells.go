package report

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetconv/internal/core"
	"github.com/JonMunkholm/sheetconv/internal/schema"
)

// CellMessage is a described conversion error, ready for display.
type CellMessage struct {
	core.ConversionError
	UserMessage
}

// Describe maps a cell error to a coded message. Reasons produced by custom
// parse or validate functions keep their own text under VAL000.
func Describe(e core.ConversionError) UserMessage {
	switch e.Reason {
	case core.ReasonRequired:
		return UserMessage{
			Message: "Required field is empty",
			Action:  fmt.Sprintf("Fill in column %q on row %d", e.Column, e.Row),
			Code:    "VAL003",
		}
	case core.ReasonInvalid:
		return describeInvalid(e)
	case schema.ReasonNotAllowed:
		return UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "VAL006",
		}
	case schema.ReasonOutOfRange:
		return UserMessage{
			Message: "Value is out of range",
			Action:  "Check the minimum and maximum for this field",
			Code:    "VAL008",
		}
	case schema.ReasonPattern:
		return UserMessage{
			Message: "Value does not match the expected format",
			Action:  "Check the format required for this field",
			Code:    "VAL009",
		}
	case "invalid date":
		return invalidDate
	case "invalid number":
		return invalidNumber
	}
	return UserMessage{
		Message: e.Reason,
		Action:  "Check the value against the column's rules",
		Code:    "VAL000",
	}
}

var (
	invalidDate = UserMessage{
		Message: "Invalid date format detected",
		Action:  "Use a spreadsheet date cell, YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
		Code:    "VAL001",
	}
	invalidNumber = UserMessage{
		Message: "Invalid number format detected",
		Action:  "Remove currency symbols and use standard decimal format",
		Code:    "VAL002",
	}
)

func describeInvalid(e core.ConversionError) UserMessage {
	switch strings.TrimPrefix(e.Type, "[]") {
	case "timestamp":
		return invalidDate
	case "number", "integer":
		return invalidNumber
	case "boolean":
		return UserMessage{
			Message: "Invalid boolean value",
			Action:  "Use 1 for true and 0 for false",
			Code:    "VAL007",
		}
	}
	msg := UserMessage{
		Message: "Value does not fit the column type",
		Action:  "Check the value format for this field",
		Code:    "VAL010",
	}
	if e.Type != "" {
		msg.Message = fmt.Sprintf("Value is not a valid %s", strings.TrimPrefix(e.Type, "[]"))
	}
	return msg
}

// DescribeAll describes every error of a result in order.
func DescribeAll(errs []core.ConversionError) []CellMessage {
	out := make([]CellMessage, len(errs))
	for i, e := range errs {
		out[i] = CellMessage{ConversionError: e, UserMessage: Describe(e)}
	}
	return out
}

// Summary counts errors by code, for log lines and report headers.
func Summary(errs []core.ConversionError) map[string]int {
	counts := make(map[string]int)
	for _, e := range errs {
		counts[Describe(e).Code]++
	}
	return counts
}
