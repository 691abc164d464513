// Package templates holds the HTML components of the web UI.
//
// Components are written in .templ files and compiled with `templ generate`;
// this file has the view types and helpers they share.
package templates

//go:generate templ generate

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/goccy/go-json"

	"github.com/JonMunkholm/sheetconv/internal/core"
	"github.com/JonMunkholm/sheetconv/internal/report"
	"github.com/JonMunkholm/sheetconv/internal/schema"
)

// PreviewRows is the number of records shown in a report.
const PreviewRows = 20

// ReportView is the data behind the conversion report page.
type ReportView struct {
	Definition schema.Definition
	Filename   string
	Records    []core.Record
	Errors     []report.CellMessage
	Summary    map[string]int
	Imported   int64
	Duration   time.Duration
}

// schemaGroup is one section of the index page.
type schemaGroup struct {
	Title   string
	Schemas []schema.Definition
}

// groupSchemas splits definitions, already sorted by group, into sections.
func groupSchemas(defs []schema.Definition) []schemaGroup {
	var groups []schemaGroup
	for _, d := range defs {
		title := groupTitle(d.Group)
		if n := len(groups); n == 0 || groups[n-1].Title != title {
			groups = append(groups, schemaGroup{Title: title})
		}
		last := &groups[len(groups)-1]
		last.Schemas = append(last.Schemas, d)
	}
	return groups
}

func groupTitle(group string) string {
	if group == "" {
		return "Other"
	}
	return group
}

// ConvertPath is the browser upload route of a schema.
func ConvertPath(key string) string {
	return "/convert/" + url.PathEscape(key)
}

// TemplatePath is the CSV template route of a schema.
func TemplatePath(key string) string {
	return "/template/" + url.PathEscape(key)
}

func convertURL(key string) templ.SafeURL {
	return templ.SafeURL(ConvertPath(key))
}

func templateURL(key string) templ.SafeURL {
	return templ.SafeURL(TemplatePath(key))
}

// summaryLine is the report headline, e.g. "a.csv: 3 records, 1 cell errors (2ms)".
func summaryLine(v ReportView) string {
	var b strings.Builder
	if v.Filename != "" {
		b.WriteString(v.Filename)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%d records, %d cell errors", len(v.Records), len(v.Errors))
	if v.Imported > 0 {
		fmt.Fprintf(&b, ", %d imported", v.Imported)
	}
	fmt.Fprintf(&b, " (%s)", v.Duration.Round(time.Millisecond))
	return b.String()
}

func summaryCodes(summary map[string]int) []string {
	codes := make([]string, 0, len(summary))
	for c := range summary {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// previewProps lists the top-level properties in column order.
func previewProps(def schema.Definition) []string {
	props := make([]string, 0, len(def.Columns))
	for _, c := range def.Columns {
		props = append(props, c.Prop)
	}
	return props
}

func previewRecords(records []core.Record) []core.Record {
	if len(records) > PreviewRows {
		return records[:PreviewRows]
	}
	return records
}

// FormatValue renders a record value as display text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return strings.Join(parts, ", ")
	case core.Record:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
