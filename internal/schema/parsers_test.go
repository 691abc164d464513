package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{input: "123.45", want: 123.45},
		{input: "$1,234.50", want: 1234.5},
		{input: "(1,234.50)", want: -1234.5},
		{input: "€ 10", want: 10},
		{input: "£0.5", want: 0.5},
		{input: "-7", want: -7},
		{input: "1e3", want: 1000},
		{input: "abc", wantErr: true},
		{input: "$", wantErr: true},
		{input: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCurrency(tt.input)
			if tt.wantErr {
				assert.EqualError(t, err, "invalid number")
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "2024-01-15", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{input: "1/15/2024", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{input: "Jan 15, 2024", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{input: "20240115", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{input: "3/24/18", want: time.Date(2018, 3, 24, 0, 0, 0, 0, time.UTC)},
		{input: "1/2/99", want: time.Date(1999, 1, 2, 0, 0, 0, 0, time.UTC)},
		{input: "2024-13-45", wantErr: true},
		{input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.EqualError(t, err, "invalid date")
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.(time.Time)), "got %v", got)
		})
	}
}

func TestParseUsState(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "California", want: "CA"},
		{input: "  new york ", want: "NY"},
		{input: "tx", want: "TX"},
		{input: "DC", want: "DC"},
		{input: "Ontario", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseUsState(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTrim(t *testing.T) {
	got, err := ParseTrim("  hi ")
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	got, err = ParseTrim("   ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParserRegistry(t *testing.T) {
	assert.Equal(t, []string{"currency", "date", "trim", "us_state"}, ParserNames())

	_, ok := LookupParser("currency")
	assert.True(t, ok)
	_, ok = LookupParser("missing")
	assert.False(t, ok)

	assert.Panics(t, func() { RegisterParser("trim", ParseTrim) })
}
