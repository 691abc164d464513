package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetconv/internal/report"
	"github.com/JonMunkholm/sheetconv/internal/schema"
	"github.com/JonMunkholm/sheetconv/internal/service"
	"github.com/JonMunkholm/sheetconv/internal/source"
)

func TestResultsError(t *testing.T) {
	ok := fileResult{File: "a.csv"}
	withCells := fileResult{File: "b.csv", Errors: make([]report.CellMessage, 2)}
	broken := fileResult{File: "c.csv", Failure: &report.UserMessage{Code: "FILE005"}}

	assert.NoError(t, resultsError([]fileResult{ok, withCells}, false))
	assert.True(t, errors.Is(resultsError([]fileResult{ok, withCells}, true), errCellErrors))
	assert.EqualError(t, resultsError([]fileResult{ok, broken}, false), "1 of 2 files failed")
}

func TestSharedFlags(t *testing.T) {
	for _, c := range []*cobra.Command{convertCmd, importCmd} {
		for _, name := range []string{"schema", "sheet", "format", "columns", "output", "pretty"} {
			assert.NotNil(t, c.Flags().Lookup(name), "%s --%s", c.Name(), name)
		}
	}
	assert.Equal(t, "o", importCmd.Flags().Lookup("output").Shorthand)
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"coded", source.ErrEmptyFile, report.FormatUserError(source.ErrEmptyFile)},
		{"uncoded", errors.New("flag needs an argument"), "flag needs an argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorText(tt.err))
		})
	}
	assert.Contains(t, errorText(source.ErrEmptyFile), "(Code: ")
}

func TestFailed(t *testing.T) {
	res := failed(fileResult{File: "a.csv"}, source.ErrTooLarge)
	require.NotNil(t, res.Failure)
	assert.Equal(t, report.MapError(source.ErrTooLarge), *res.Failure)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestConvertFile(t *testing.T) {
	def, err := schema.Parse([]byte("key: people\ncolumns:\n  - {column: NAME, prop: name, type: text, required: true}\n"))
	require.NoError(t, err)
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(def))
	svc := service.New(reg, nil, nil, service.Options{})

	dir := t.TempDir()
	good := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(good, []byte("NAME\nann\n\n"), 0o600))

	flagSchema = "people"
	t.Cleanup(func() { flagSchema = "" })

	res := convertFile(context.Background(), convertCmd, svc, good)
	assert.Nil(t, res.Failure)
	assert.Equal(t, 1, res.Records)
	assert.Equal(t, "ann", res.Rows[0]["name"])

	res = convertFile(context.Background(), convertCmd, svc, filepath.Join(dir, "missing.csv"))
	require.NotNil(t, res.Failure)
	assert.Equal(t, "ERR000", res.Failure.Code)
}
