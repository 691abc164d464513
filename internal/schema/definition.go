// Package schema loads declarative sheet definitions and keeps them in a registry.
//
// A definition is a YAML document naming the header columns of a sheet and the
// record property each one fills:
//
//	key: sfdc_customers
//	label: Customers
//	group: SFDC
//	table: sfdc_customers
//	columns:
//	  - column: Account ID
//	    prop: id
//	    type: text
//	    required: true
//	  - column: Billing State
//	    prop: state
//	    parse: us_state
//	  - prop: contact
//	    columns:
//	      - column: Email
//	        prop: email
//	        type: email
//
// Definitions compile to a core.Schema. Named parse functions come from the
// parser registry (see RegisterParser); oneOf, pattern, min and max compile to
// a validate function.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/sheetconv/internal/core"
)

// ErrInvalidDefinition marks a definition that cannot be compiled.
var ErrInvalidDefinition = errors.New("invalid schema definition")

// Definition describes one sheet layout.
type Definition struct {
	Key            string      `yaml:"key" json:"key"`
	Label          string      `yaml:"label" json:"label"`
	Group          string      `yaml:"group" json:"group"`
	ColumnOriented bool        `yaml:"columnOriented,omitempty" json:"columnOriented,omitempty"`
	Table          string      `yaml:"table,omitempty" json:"table,omitempty"`
	Columns        []ColumnDef `yaml:"columns" json:"columns"`

	schema core.Schema
}

// ColumnDef describes one column. A column with Columns is a nested group.
type ColumnDef struct {
	Column    string      `yaml:"column,omitempty" json:"column,omitempty"`
	Prop      string      `yaml:"prop" json:"prop"`
	Type      string      `yaml:"type,omitempty" json:"type,omitempty"`
	List      bool        `yaml:"list,omitempty" json:"list,omitempty"`
	Parse     string      `yaml:"parse,omitempty" json:"parse,omitempty"`
	Required  bool        `yaml:"required,omitempty" json:"required,omitempty"`
	Delimiter string      `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	OneOf     []string    `yaml:"oneOf,omitempty" json:"oneOf,omitempty"`
	Pattern   string      `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Min       *float64    `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64    `yaml:"max,omitempty" json:"max,omitempty"`
	Columns   []ColumnDef `yaml:"columns,omitempty" json:"columns,omitempty"`
	DBColumn  string      `yaml:"dbColumn,omitempty" json:"dbColumn,omitempty"`
}

// Target maps a record path to a database column.
type Target struct {
	Column string
	Path   []string
	Type   core.ValueType
	List   bool
}

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Schema returns the compiled schema. It is nil until Compile succeeds.
func (d Definition) Schema() core.Schema {
	return d.schema
}

// Compile validates the definition and builds its schema.
// All problems are reported together.
func (d *Definition) Compile() error {
	var errs []string

	if d.Key == "" {
		errs = append(errs, "key is required")
	} else if !keyPattern.MatchString(d.Key) {
		errs = append(errs, fmt.Sprintf("key %q must be lowercase letters, digits, '_' or '-'", d.Key))
	}
	if len(d.Columns) == 0 {
		errs = append(errs, "at least one column is required")
	}

	s, colErrs := buildSchema(d.Columns, "")
	errs = append(errs, colErrs...)

	if len(errs) == 0 {
		if err := s.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w %q:\n  - %s", ErrInvalidDefinition, d.Key, strings.Join(errs, "\n  - "))
	}

	d.schema = s
	if d.Label == "" {
		d.Label = d.Key
	}
	return nil
}

func buildSchema(defs []ColumnDef, parent string) (core.Schema, []string) {
	var (
		s    = make(core.Schema, 0, len(defs))
		errs []string
	)
	for _, def := range defs {
		col, colErrs := def.build(parent)
		errs = append(errs, colErrs...)
		s = append(s, col)
	}
	return s, errs
}

func (c ColumnDef) build(parent string) (core.Column, []string) {
	path := c.Prop
	if parent != "" {
		path = parent + "." + c.Prop
	}

	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("column %q: ", path)+fmt.Sprintf(format, args...))
	}

	if c.Prop == "" {
		fail("prop is required")
	}

	if len(c.Columns) > 0 {
		if c.Type != "" || c.Parse != "" || c.Column != "" || c.List {
			fail("nested group cannot set column, type, parse or list")
		}
		sub, subErrs := buildSchema(c.Columns, path)
		return core.Nested(c.Prop, sub), append(errs, subErrs...)
	}

	if c.Column == "" {
		fail("column header is required")
	}

	var col core.Column
	switch {
	case c.Type != "" && c.Parse != "":
		fail("type and parse are mutually exclusive")
	case c.Type != "":
		t, ok := core.ParseValueType(c.Type)
		if !ok {
			fail("unknown type %q", c.Type)
		}
		if c.List {
			col = core.List(c.Column, c.Prop, t)
		} else {
			col = core.Scalar(c.Column, c.Prop, t)
		}
	case c.Parse != "":
		fn, ok := LookupParser(c.Parse)
		if !ok {
			fail("unknown parser %q (registered: %s)", c.Parse, strings.Join(ParserNames(), ", "))
		}
		if c.List {
			col = core.CustomList(c.Column, c.Prop, fn)
		} else {
			col = core.Custom(c.Column, c.Prop, fn)
		}
	default:
		fail("type or parse is required")
	}

	if c.Required {
		col = col.Require()
	}

	if c.Delimiter != "" {
		if !c.List {
			fail("delimiter is only valid on list columns")
		} else if len(c.Delimiter) != 1 {
			fail("delimiter must be a single byte, got %q", c.Delimiter)
		} else {
			col = col.SplitOn(c.Delimiter[0])
		}
	}

	validate, err := c.validator()
	if err != nil {
		fail("%v", err)
	} else if validate != nil {
		col = col.Check(validate)
	}

	// Keep the header and prop even when the column is broken so errors name it.
	col.Key, col.Prop = c.Column, c.Prop
	return col, errs
}

// Targets lists the database columns of a definition in schema order.
// Columns without dbColumn are named after their record path joined by '_'.
func (d Definition) Targets() []Target {
	return targets(d.Columns, nil)
}

func targets(defs []ColumnDef, parent []string) []Target {
	var out []Target
	for _, c := range defs {
		path := append(append([]string(nil), parent...), c.Prop)
		if len(c.Columns) > 0 {
			out = append(out, targets(c.Columns, path)...)
			continue
		}

		name := c.DBColumn
		if name == "" {
			name = strings.Join(path, "_")
		}
		t, _ := core.ParseValueType(c.Type)
		out = append(out, Target{Column: name, Path: path, Type: t, List: c.List})
	}
	return out
}

// Headers lists the source header names of a definition in schema order.
func (d Definition) Headers() []string {
	return headers(d.Columns, nil)
}

func headers(defs []ColumnDef, out []string) []string {
	for _, c := range defs {
		if len(c.Columns) > 0 {
			out = headers(c.Columns, out)
			continue
		}
		out = append(out, c.Column)
	}
	return out
}
