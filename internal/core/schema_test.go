package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumn_TypeName(t *testing.T) {
	custom := func(string) (any, error) { return nil, nil }

	tests := []struct {
		name string
		col  Column
		want string
	}{
		{name: "scalar", col: Scalar("A", "a", TypeNumber), want: "number"},
		{name: "list", col: List("A", "a", TypeTimestamp), want: "[]timestamp"},
		{name: "custom", col: Custom("A", "a", custom), want: ""},
		{name: "custom list", col: CustomList("A", "a", custom), want: ""},
		{name: "nested", col: Nested("a", Schema{Scalar("B", "b", TypeText)}), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.col.TypeName())
		})
	}
}

func TestParseValueType(t *testing.T) {
	tests := []struct {
		input  string
		want   ValueType
		wantOK bool
	}{
		{"text", TypeText, true},
		{"string", TypeText, true},
		{"number", TypeNumber, true},
		{"integer", TypeInteger, true},
		{"timestamp", TypeTimestamp, true},
		{"date", TypeTimestamp, true},
		{"boolean", TypeBoolean, true},
		{"uuid", TypeUUID, true},
		{"email", TypeEmail, true},
		{"url", TypeURL, true},
		{"money", TypeNone, false},
		{"", TypeNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseValueType(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestColumn_Modifiers(t *testing.T) {
	col := List("TAGS", "tags", TypeText).Require().SplitOn('|')

	assert.True(t, col.Required)
	assert.Equal(t, byte('|'), col.delimiter())
	assert.Equal(t, byte(','), List("TAGS", "tags", TypeText).delimiter())
}

func TestMakeHeaderIndex(t *testing.T) {
	idx := MakeHeaderIndex(Row{Text("A"), Null(), Text("B"), Text("A")})

	assert.Equal(t, HeaderIndex{"A": 0, "B": 2}, idx)
	assert.Equal(t, Text("y"), idx.lookup(Row{Text("x"), Null(), Text("y")}, "B"))
	assert.Equal(t, Null(), idx.lookup(Row{Text("x")}, "B"))
	assert.Equal(t, Null(), idx.lookup(Row{Text("x")}, "C"))
}
