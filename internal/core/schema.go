package core

import (
	"errors"
	"fmt"
)

// ErrInvalidColumn marks a schema authoring defect (for example a column with
// neither a value type nor a parse function). It aborts the whole conversion.
var ErrInvalidColumn = errors.New("invalid schema column")

// ValueType is the built-in type a cell is converted to.
type ValueType int

const (
	TypeNone ValueType = iota // no built-in type; the column uses a ParseFunc
	TypeText
	TypeNumber
	TypeTimestamp
	TypeBoolean
	TypeInteger
	TypeUUID
	TypeEmail
	TypeURL
)

var valueTypeNames = map[ValueType]string{
	TypeText:      "text",
	TypeNumber:    "number",
	TypeTimestamp: "timestamp",
	TypeBoolean:   "boolean",
	TypeInteger:   "integer",
	TypeUUID:      "uuid",
	TypeEmail:     "email",
	TypeURL:       "url",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return ""
}

// ParseValueType resolves a type name such as "number" or "timestamp".
// "string" and "date" are accepted as aliases of text and timestamp.
func ParseValueType(name string) (ValueType, bool) {
	switch name {
	case "string":
		return TypeText, true
	case "date":
		return TypeTimestamp, true
	}
	for t, n := range valueTypeNames {
		if n == name {
			return t, true
		}
	}
	return TypeNone, false
}

// ColumnKind says how a column's cell is read.
type ColumnKind int

const (
	KindScalar ColumnKind = iota // one value per cell
	KindList                     // a delimited list of values in one cell
	KindNested                   // a sub-schema read against the same row
)

// ParseFunc converts a raw cell into a value. A nil value with a nil error
// means the cell holds nothing; a non-nil error's message becomes the reason.
type ParseFunc func(raw string) (any, error)

// ValidateFunc checks a parsed, non-null value. A non-nil error's message
// becomes the reason and the value is discarded.
type ValidateFunc func(value any) error

// Column describes how to extract and convert one field.
type Column struct {
	Key       string    // Header name to read from
	Prop      string    // Property name in the resulting Record
	Kind      ColumnKind
	Type      ValueType // Built-in type (element type for lists)
	Parse     ParseFunc // Used when Type is TypeNone
	Validate  ValidateFunc
	Required  bool
	Delimiter byte   // List separator (default ',')
	Schema    Schema // Sub-schema for KindNested
}

// Schema is an ordered set of columns. Columns are processed in order.
type Schema []Column

// Scalar declares a column holding one value of type t.
func Scalar(key, prop string, t ValueType) Column {
	return Column{Key: key, Prop: prop, Kind: KindScalar, Type: t}
}

// List declares a column holding a comma separated list of values of type t.
func List(key, prop string, t ValueType) Column {
	return Column{Key: key, Prop: prop, Kind: KindList, Type: t}
}

// Custom declares a column converted by fn.
func Custom(key, prop string, fn ParseFunc) Column {
	return Column{Key: key, Prop: prop, Kind: KindScalar, Parse: fn}
}

// CustomList declares a list column whose elements are converted by fn.
func CustomList(key, prop string, fn ParseFunc) Column {
	return Column{Key: key, Prop: prop, Kind: KindList, Parse: fn}
}

// Nested declares a property assembled from sub against the same row.
func Nested(prop string, sub Schema) Column {
	return Column{Key: prop, Prop: prop, Kind: KindNested, Schema: sub}
}

// Require marks the column as required.
func (c Column) Require() Column {
	c.Required = true
	return c
}

// Check attaches a validator run after a successful parse.
func (c Column) Check(fn ValidateFunc) Column {
	c.Validate = fn
	return c
}

// SplitOn sets the list separator.
func (c Column) SplitOn(delim byte) Column {
	c.Delimiter = delim
	return c
}

// delimiter returns the list separator, defaulting to a comma.
func (c Column) delimiter() byte {
	if c.Delimiter == 0 {
		return ','
	}
	return c.Delimiter
}

// TypeName returns the declared type as reported in errors:
// "number" for scalars, "[]number" for lists, "" for custom and nested columns.
func (c Column) TypeName() string {
	if c.Kind == KindNested || c.Type == TypeNone {
		return ""
	}
	if c.Kind == KindList {
		return "[]" + c.Type.String()
	}
	return c.Type.String()
}

// Validate reports the first authoring defect in the schema, descending into
// nested schemas. The returned error wraps ErrInvalidColumn.
func (s Schema) Validate() error {
	for _, col := range s {
		if err := col.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Column) validate() error {
	if c.Prop == "" {
		return fmt.Errorf("%w %q: no target property", ErrInvalidColumn, c.Key)
	}
	switch c.Kind {
	case KindNested:
		if len(c.Schema) == 0 {
			return fmt.Errorf("%w %q: nested column without a schema", ErrInvalidColumn, c.Key)
		}
		return c.Schema.Validate()
	case KindScalar, KindList:
		if c.Type == TypeNone && c.Parse == nil {
			return fmt.Errorf("%w %q: no type and no parse function", ErrInvalidColumn, c.Key)
		}
		if c.Type != TypeNone && c.Type.String() == "" {
			return fmt.Errorf("%w %q: unknown value type %d", ErrInvalidColumn, c.Key, int(c.Type))
		}
	default:
		return fmt.Errorf("%w %q: unknown column kind %d", ErrInvalidColumn, c.Key, int(c.Kind))
	}
	return nil
}
