package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetconv/internal/core"
)

const customersYAML = `
key: customers
label: Customers
group: CRM
table: crm_customers
columns:
  - column: ID
    prop: id
    type: integer
    required: true
  - column: STATE
    prop: state
    parse: us_state
  - column: TIER
    prop: tier
    type: text
    oneOf: [gold, silver]
  - column: TAGS
    prop: tags
    type: text
    list: true
    delimiter: "|"
  - prop: contact
    columns:
      - column: EMAIL
        prop: email
        type: email
        dbColumn: contact_email
      - column: PHONE
        prop: phone
        type: text
        pattern: "^[0-9-]+$"
`

func TestParse(t *testing.T) {
	def, err := Parse([]byte(customersYAML))
	require.NoError(t, err)

	assert.Equal(t, "customers", def.Key)
	assert.Equal(t, "CRM", def.Group)
	require.Len(t, def.Schema(), 5)

	s := def.Schema()
	assert.Equal(t, core.Scalar("ID", "id", core.TypeInteger).Require(), s[0])
	assert.Equal(t, core.KindScalar, s[1].Kind)
	assert.NotNil(t, s[1].Parse)
	assert.NotNil(t, s[2].Validate)
	assert.Equal(t, core.KindList, s[3].Kind)
	assert.Equal(t, "[]text", s[3].TypeName())
	assert.Equal(t, core.KindNested, s[4].Kind)
	assert.Len(t, s[4].Schema, 2)
}

func TestParse_Convert(t *testing.T) {
	def, err := Parse([]byte(customersYAML))
	require.NoError(t, err)

	grid := core.GridOf([][]string{
		{"ID", "STATE", "TIER", "TAGS", "EMAIL", "PHONE"},
		{"7", "new york", "gold", "a|b", "ann@example.com", "555-1234"},
		{"8", "Narnia", "bronze", "", "", "call me"},
	})

	result, err := core.Convert(grid, def.Schema(), nil)
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, core.Record{
		"id":    int64(7),
		"state": "NY",
		"tier":  "gold",
		"tags":  []any{"a", "b"},
		"contact": core.Record{
			"email": "ann@example.com",
			"phone": "555-1234",
		},
	}, result.Rows[0])

	reasons := make(map[string]string)
	for _, e := range result.Errors {
		reasons[e.Column] = e.Reason
	}
	assert.Equal(t, map[string]string{
		"STATE": "invalid state",
		"TIER":  ReasonNotAllowed,
		"PHONE": ReasonPattern,
	}, reasons)
}

func TestDefinition_CompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "missing key",
			yaml:    "columns: [{column: A, prop: a, type: text}]",
			wantMsg: "key is required",
		},
		{
			name:    "bad key",
			yaml:    "key: Bad Key\ncolumns: [{column: A, prop: a, type: text}]",
			wantMsg: "must be lowercase",
		},
		{
			name:    "no columns",
			yaml:    "key: x",
			wantMsg: "at least one column",
		},
		{
			name:    "unknown type",
			yaml:    "key: x\ncolumns: [{column: A, prop: a, type: money}]",
			wantMsg: `unknown type "money"`,
		},
		{
			name:    "unknown parser",
			yaml:    "key: x\ncolumns: [{column: A, prop: a, parse: nope}]",
			wantMsg: `unknown parser "nope" (registered: currency, date, trim, us_state)`,
		},
		{
			name:    "type and parse",
			yaml:    "key: x\ncolumns: [{column: A, prop: a, type: text, parse: trim}]",
			wantMsg: "mutually exclusive",
		},
		{
			name:    "neither type nor parse",
			yaml:    "key: x\ncolumns: [{column: A, prop: a}]",
			wantMsg: "type or parse is required",
		},
		{
			name:    "missing prop",
			yaml:    "key: x\ncolumns: [{column: A, type: text}]",
			wantMsg: "prop is required",
		},
		{
			name:    "missing header",
			yaml:    "key: x\ncolumns: [{prop: a, type: text}]",
			wantMsg: "column header is required",
		},
		{
			name:    "delimiter on scalar",
			yaml:    "key: x\ncolumns: [{column: A, prop: a, type: text, delimiter: ';'}]",
			wantMsg: "only valid on list columns",
		},
		{
			name:    "long delimiter",
			yaml:    "key: x\ncolumns: [{column: A, prop: a, type: text, list: true, delimiter: '::'}]",
			wantMsg: "single byte",
		},
		{
			name:    "bad pattern",
			yaml:    "key: x\ncolumns: [{column: A, prop: a, type: text, pattern: '('}]",
			wantMsg: "invalid pattern",
		},
		{
			name:    "min above max",
			yaml:    "key: x\ncolumns: [{column: A, prop: a, type: number, min: 5, max: 1}]",
			wantMsg: "greater than max",
		},
		{
			name:    "nested group with type",
			yaml:    "key: x\ncolumns: [{prop: a, type: text, columns: [{column: B, prop: b, type: text}]}]",
			wantMsg: "nested group cannot set",
		},
		{
			name:    "nested child error names path",
			yaml:    "key: x\ncolumns: [{prop: a, columns: [{column: B, prop: b}]}]",
			wantMsg: `column "a.b"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("key: x\ncolumns: [{column: A, prop: a, type: text, requred: true}]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requred")
}

func TestDefinition_Compile_DefaultsLabel(t *testing.T) {
	def, err := Parse([]byte("key: x\ncolumns: [{column: A, prop: a, type: text}]"))
	require.NoError(t, err)
	assert.Equal(t, "x", def.Label)
}

func TestDefinition_Targets(t *testing.T) {
	def, err := Parse([]byte(customersYAML))
	require.NoError(t, err)

	assert.Equal(t, []Target{
		{Column: "id", Path: []string{"id"}, Type: core.TypeInteger},
		{Column: "state", Path: []string{"state"}},
		{Column: "tier", Path: []string{"tier"}, Type: core.TypeText},
		{Column: "tags", Path: []string{"tags"}, Type: core.TypeText, List: true},
		{Column: "contact_email", Path: []string{"contact", "email"}, Type: core.TypeEmail},
		{Column: "contact_phone", Path: []string{"contact", "phone"}, Type: core.TypeText},
	}, def.Targets())
}

func TestDefinition_Headers(t *testing.T) {
	def, err := Parse([]byte(customersYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "STATE", "TIER", "TAGS", "EMAIL", "PHONE"}, def.Headers())
}

func TestValidators(t *testing.T) {
	lo, hi := 2.0, 4.0
	check := between(&lo, &hi)

	assert.NoError(t, check(3.0))
	assert.NoError(t, check(int64(4)))
	assert.NoError(t, check("abc"))
	assert.EqualError(t, check(5.0), ReasonOutOfRange)
	assert.EqualError(t, check("a"), ReasonOutOfRange)
	assert.NoError(t, check(true))

	assert.NoError(t, oneOf([]string{"1", "2"})(float64(2)))
	assert.EqualError(t, oneOf([]string{"a"})("b"), ReasonNotAllowed)
}

func TestSampleDefinitions(t *testing.T) {
	defs, err := ParseDir("../../schemas")
	require.NoError(t, err)
	assert.NotEmpty(t, defs)

	for _, def := range defs {
		assert.NotEmpty(t, def.Schema(), def.Key)
	}
}
