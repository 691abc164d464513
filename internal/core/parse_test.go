package core

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue_BuiltinTypes(t *testing.T) {
	tests := []struct {
		name       string
		raw        Cell
		typ        ValueType
		wantValue  any
		wantReason string
	}{
		// Null never reaches a converter
		{name: "null number", raw: Null(), typ: TypeNumber, wantValue: nil},
		{name: "null boolean", raw: Null(), typ: TypeBoolean, wantValue: nil},

		// Text
		{name: "text passthrough", raw: Text("abc"), typ: TypeText, wantValue: "abc"},
		{name: "text keeps spaces", raw: Text(" a b "), typ: TypeText, wantValue: " a b "},
		{name: "empty text", raw: Text(""), typ: TypeText, wantValue: ""},

		// Number
		{name: "integer number", raw: Text("123"), typ: TypeNumber, wantValue: 123.0},
		{name: "decimal number", raw: Text("-1.25"), typ: TypeNumber, wantValue: -1.25},
		{name: "exponent", raw: Text("1.5e3"), typ: TypeNumber, wantValue: 1500.0},
		{name: "surrounding whitespace", raw: Text("  42  "), typ: TypeNumber, wantValue: 42.0},
		{name: "trailing garbage", raw: Text("123abc"), typ: TypeNumber, wantReason: ReasonInvalid},
		{name: "empty number", raw: Text(""), typ: TypeNumber, wantReason: ReasonInvalid},
		{name: "infinity", raw: Text("Infinity"), typ: TypeNumber, wantReason: ReasonInvalid},
		{name: "nan", raw: Text("NaN"), typ: TypeNumber, wantReason: ReasonInvalid},

		// Integer
		{name: "whole integer", raw: Text("1"), typ: TypeInteger, wantValue: int64(1)},
		{name: "whole float form", raw: Text("2.0"), typ: TypeInteger, wantValue: int64(2)},
		{name: "fractional integer", raw: Text("1.2"), typ: TypeInteger, wantReason: ReasonInvalid},
		{name: "integer overflow", raw: Text("1e30"), typ: TypeInteger, wantReason: ReasonInvalid},

		// Timestamp
		{name: "serial with letters", raw: Text("-"), typ: TypeTimestamp, wantReason: ReasonInvalid},
		{name: "negative serial", raw: Text("-5"), typ: TypeTimestamp, wantReason: ReasonInvalid},

		// Boolean
		{name: "boolean one", raw: Text("1"), typ: TypeBoolean, wantValue: true},
		{name: "boolean zero", raw: Text("0"), typ: TypeBoolean, wantValue: false},
		{name: "boolean word", raw: Text("TRUE"), typ: TypeBoolean, wantReason: ReasonInvalid},
		{name: "boolean padded", raw: Text(" 1"), typ: TypeBoolean, wantReason: ReasonInvalid},

		// UUID
		{
			name:      "uuid",
			raw:       Text("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
			typ:       TypeUUID,
			wantValue: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		},
		{name: "bad uuid", raw: Text("not-a-uuid"), typ: TypeUUID, wantReason: ReasonInvalid},

		// Email
		{name: "email", raw: Text("ann@example.com"), typ: TypeEmail, wantValue: "ann@example.com"},
		{name: "email with display name", raw: Text("Ann <ann@example.com>"), typ: TypeEmail, wantReason: ReasonInvalid},
		{name: "not an email", raw: Text("ann"), typ: TypeEmail, wantReason: ReasonInvalid},

		// URL
		{name: "url", raw: Text("https://example.com/a?b=c"), typ: TypeURL, wantValue: "https://example.com/a?b=c"},
		{name: "url without scheme", raw: Text("example.com"), typ: TypeURL, wantReason: ReasonInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.raw, Scalar("COL", "col", tt.typ))
			require.NoError(t, err)
			assert.Equal(t, tt.wantReason, got.Reason)
			assert.Equal(t, tt.wantReason != "", got.Failed())
			assert.Equal(t, tt.wantValue, got.Value)
		})
	}
}

func TestParseValue_Timestamp(t *testing.T) {
	t.Run("whole serial is midnight", func(t *testing.T) {
		got, err := ParseValue(Text("43183"), Scalar("DATE", "date", TypeTimestamp))
		require.NoError(t, err)
		require.False(t, got.Failed())
		assert.WithinDuration(t, time.Date(2018, 3, 24, 0, 0, 0, 0, time.UTC), got.Value.(time.Time), time.Second)
	})

	t.Run("fraction is time of day", func(t *testing.T) {
		got, err := ParseValue(Text("43183.5"), Scalar("DATE", "date", TypeTimestamp))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Date(2018, 3, 24, 12, 0, 0, 0, time.UTC), got.Value.(time.Time), time.Second)
	})

	t.Run("1904 date system", func(t *testing.T) {
		got, err := parser{date1904: true}.parse(Text("41721"), Scalar("DATE", "date", TypeTimestamp))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Date(2018, 3, 24, 0, 0, 0, 0, time.UTC), got.Value.(time.Time), time.Second)
	})
}

func TestParseValue_Custom(t *testing.T) {
	t.Run("returns value", func(t *testing.T) {
		col := Custom("PHONE", "phone", func(string) (any, error) { return "+11234567890", nil })
		got, err := ParseValue(Text("(123) 456-7890"), col)
		require.NoError(t, err)
		assert.Equal(t, ParseResult{Value: "+11234567890"}, got)
	})

	t.Run("no value", func(t *testing.T) {
		col := Custom("PHONE", "phone", func(string) (any, error) { return nil, nil })
		got, err := ParseValue(Text("n/a"), col)
		require.NoError(t, err)
		assert.Equal(t, ParseResult{}, got)
	})

	t.Run("failure message becomes reason", func(t *testing.T) {
		col := Custom("PHONE", "phone", func(string) (any, error) { return nil, errors.New("bad phone") })
		got, err := ParseValue(Text("123"), col)
		require.NoError(t, err)
		assert.Equal(t, ParseResult{Reason: "bad phone"}, got)
	})

	t.Run("empty failure message", func(t *testing.T) {
		col := Custom("PHONE", "phone", func(string) (any, error) { return nil, errors.New("") })
		got, err := ParseValue(Text("123"), col)
		require.NoError(t, err)
		assert.Equal(t, ReasonInvalid, got.Reason)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		col := Custom("PHONE", "phone", func(string) (any, error) { panic("boom") })
		got, err := ParseValue(Text("123"), col)
		require.NoError(t, err)
		assert.Equal(t, "boom", got.Reason)
	})

	t.Run("not called for null", func(t *testing.T) {
		called := false
		col := Custom("PHONE", "phone", func(string) (any, error) {
			called = true
			return "x", nil
		})
		got, err := ParseValue(Null(), col)
		require.NoError(t, err)
		assert.Nil(t, got.Value)
		assert.False(t, called)
	})

	t.Run("type wins over parse function", func(t *testing.T) {
		col := Scalar("N", "n", TypeNumber)
		col.Parse = func(string) (any, error) { return "custom", nil }
		got, err := ParseValue(Text("7"), col)
		require.NoError(t, err)
		assert.Equal(t, 7.0, got.Value)
	})
}

func TestParseValue_Validate(t *testing.T) {
	rejectBush := func(v any) error {
		if v == "George Bush" {
			return errors.New("custom-error")
		}
		return nil
	}

	t.Run("validator error overrides parse", func(t *testing.T) {
		got, err := ParseValue(Text("George Bush"), Scalar("NAME", "name", TypeText).Check(rejectBush))
		require.NoError(t, err)
		assert.Equal(t, ParseResult{Reason: "custom-error"}, got)
	})

	t.Run("validator passes", func(t *testing.T) {
		got, err := ParseValue(Text("Ann"), Scalar("NAME", "name", TypeText).Check(rejectBush))
		require.NoError(t, err)
		assert.Equal(t, ParseResult{Value: "Ann"}, got)
	})

	t.Run("validator skipped for null value", func(t *testing.T) {
		col := Custom("X", "x", func(string) (any, error) { return nil, nil }).
			Check(func(any) error { return errors.New("never") })
		got, err := ParseValue(Text("anything"), col)
		require.NoError(t, err)
		assert.False(t, got.Failed())
	})

	t.Run("validator skipped after failed parse", func(t *testing.T) {
		col := Scalar("N", "n", TypeNumber).Check(func(any) error { return errors.New("never") })
		got, err := ParseValue(Text("abc"), col)
		require.NoError(t, err)
		assert.Equal(t, ReasonInvalid, got.Reason)
	})
}

func TestParseValue_InvalidColumn(t *testing.T) {
	_, err := ParseValue(Text("123"), Column{Key: "X", Prop: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidColumn)

	_, err = ParseValue(Text("123"), Column{Key: "X", Prop: "x", Type: ValueType(99)})
	assert.ErrorIs(t, err, ErrInvalidColumn)
}
