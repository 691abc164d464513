// Package report turns conversion problems into coded, user-facing messages.
//
// # Error Codes Reference
//
// Codes let users quote a problem to support staff. They are grouped by category.
//
// # Cell Errors (VAL000-VAL099)
//
// Reported per cell by a conversion (see Describe):
//
//	VAL000 - Custom check failed: the reason text comes from the schema's own parser or validator
//	VAL001 - Invalid date: value is not a date the column accepts
//	VAL002 - Invalid number: value is not a number
//	VAL003 - Required field: required column is empty
//	VAL006 - Invalid enum: value is not in the allowed list
//	VAL007 - Invalid boolean: value is not 1 or 0
//	VAL008 - Out of range: value or length outside the allowed bounds
//	VAL009 - Pattern mismatch: value does not match the expected format
//	VAL010 - Invalid value: value does not fit the column type
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: file exceeds the upload limit
//	FILE002 - Unreadable file: file is not valid CSV or XLSX
//	FILE004 - No file: no file in the request
//	FILE005 - Empty file: the uploaded file is empty
//	FILE006 - Sheet missing: the requested sheet does not exist
//	FILE007 - Unknown format: file type is not supported
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid parameter: a query or form parameter has an unusable value
//
// # Schema Errors (SCH001-SCH099, TBL001)
//
//	TBL001 - Unknown schema: no definition with this key
//	SCH001 - Schema defect: the definition itself is broken
//
// # Database Errors (DB001-DB099)
//
// Raised by imports into Postgres:
//
//	DB001 - Duplicate key
//	DB003 - Foreign key violation
//	DB004 - Connection refused
//	DB006 - Timeout
//	DB008 - Database not configured
//
// # Processing Errors (UPL001-UPL099, IMP001)
//
//	UPL002 - System busy: every conversion slot is taken
//	UPL004 - Request cancelled
//	IMP001 - Import blocked: the file has cell errors
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// # Matching
//
// MapError checks sentinel errors with errors.Is first, then falls back to
// case-insensitive substring patterns. The first match wins.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetconv/internal/core"
	"github.com/JonMunkholm/sheetconv/internal/schema"
	"github.com/JonMunkholm/sheetconv/internal/service"
	"github.com/JonMunkholm/sheetconv/internal/source"
	"github.com/JonMunkholm/sheetconv/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgUnreadable = UserMessage{
		Message: "File could not be read",
		Action:  "Save the file as CSV (UTF-8) or XLSX and try again",
		Code:    "FILE002",
	}
	msgNoFile = UserMessage{
		Message: "No file was provided",
		Action:  "Please select a file to upload",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a file with a header row and data rows",
		Code:    "FILE005",
	}
	msgSheetMissing = UserMessage{
		Message: "The requested sheet does not exist",
		Action:  "Check the sheet name or number",
		Code:    "FILE006",
	}
	msgUnknownFormat = UserMessage{
		Message: "File type is not supported",
		Action:  "Upload a .csv or .xlsx file",
		Code:    "FILE007",
	}
	msgUnknownSchema = UserMessage{
		Message: "Unknown schema",
		Action:  "Pick one of the schemas listed by the server",
		Code:    "TBL001",
	}
	msgSchemaDefect = UserMessage{
		Message: "The schema definition is invalid",
		Action:  "Ask an administrator to fix the schema definition",
		Code:    "SCH001",
	}
	msgNoDatabase = UserMessage{
		Message: "Imports are not available",
		Action:  "Configure a database connection to enable imports",
		Code:    "DB008",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other files",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgImportBlocked = UserMessage{
		Message: "The file has invalid cells, nothing was imported",
		Action:  "Fix the listed cells or import the valid rows only",
		Code:    "IMP001",
	}
	msgTimeout = UserMessage{
		Message: "Operation timed out",
		Action:  "Try uploading a smaller file or try again later",
		Code:    "DB006",
	}
)

// sentinels maps known errors to messages. Checked in order with errors.Is.
var sentinels = []struct {
	err error
	msg UserMessage
}{
	{source.ErrTooLarge, msgTooLarge},
	{source.ErrEmptyFile, msgEmptyFile},
	{source.ErrSheetNotFound, msgSheetMissing},
	{source.ErrUnknownFormat, msgUnknownFormat},
	{schema.ErrNotFound, msgUnknownSchema},
	{schema.ErrInvalidDefinition, msgSchemaDefect},
	{core.ErrInvalidColumn, msgSchemaDefect},
	{store.ErrNoTable, msgSchemaDefect},
	{store.ErrNoDatabase, msgNoDatabase},
	{service.ErrBusy, msgBusy},
	{service.ErrHasErrors, msgImportBlocked},
	{context.DeadlineExceeded, msgTimeout},
	{context.Canceled, msgCancelled},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// Specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Remove duplicate rows and import again",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure parent records are imported first",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg:     msgTimeout,
	},
	{
		pattern: "invalid parameter",
		msg: UserMessage{
			Message: "A request parameter is invalid",
			Action:  "Check the query parameters and try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "no file provided",
		msg:     msgNoFile,
	},
	{
		pattern: "invalid csv",
		msg:     msgUnreadable,
	},
	{
		pattern: "open workbook",
		msg:     msgUnreadable,
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
