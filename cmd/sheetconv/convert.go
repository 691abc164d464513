package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sheetconv/internal/core"
	"github.com/JonMunkholm/sheetconv/internal/report"
	"github.com/JonMunkholm/sheetconv/internal/service"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>...",
	Short: "Convert files to JSON records",
	Long: `Convert CSV or XLSX files against a schema and print the records as JSON.

Cell errors are listed with their row, column and a coded message; they do
not stop the conversion. Several files are converted in parallel.

Examples:
  sheetconv convert -s sfdc_customers customers.csv
  sheetconv convert -s anrok_transactions --sheet Data q1.xlsx q2.xlsx
  sheetconv convert -s ns_customers --columns --strict -o out.json sheet.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

// Flags shared by convert and import
var (
	flagSchema  string
	flagSheet   string
	flagFormat  string
	flagColumns bool
)

var (
	convertOutput string
	convertPretty bool
	convertStrict bool
	convertNoRows bool
)

// errCellErrors makes --strict runs exit non-zero.
var errCellErrors = errors.New("conversion reported cell errors")

func init() {
	for _, c := range []*cobra.Command{convertCmd, importCmd} {
		c.Flags().StringVarP(&flagSchema, "schema", "s", "", "schema key (required)")
		c.Flags().StringVar(&flagSheet, "sheet", "", "XLSX sheet name or 1-based index")
		c.Flags().StringVar(&flagFormat, "format", "", "file format: csv or xlsx (default: from the file extension)")
		c.Flags().BoolVar(&flagColumns, "columns", false, "records are columns instead of rows")
		c.Flags().StringVarP(&convertOutput, "output", "o", "", "write JSON to this file instead of stdout")
		c.Flags().BoolVar(&convertPretty, "pretty", false, "indent the JSON output")
		_ = c.MarkFlagRequired("schema")
	}

	convertCmd.Flags().BoolVar(&convertStrict, "strict", false, "exit with an error when any cell fails")
	convertCmd.Flags().BoolVar(&convertNoRows, "no-rows", false, "omit the records, print counts and errors only")

	rootCmd.AddCommand(convertCmd)
}

// fileResult is the JSON output for one file.
type fileResult struct {
	File     string               `json:"file"`
	Schema   string               `json:"schema"`
	Records  int                  `json:"records"`
	Rows     []core.Record        `json:"rows,omitempty"`
	Errors   []report.CellMessage `json:"errors"`
	Summary  map[string]int       `json:"summary,omitempty"`
	Imported int64                `json:"imported,omitempty"`
	Failure  *report.UserMessage  `json:"failure,omitempty"`
}

func runConvert(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	if _, err := reg.Lookup(flagSchema); err != nil {
		return err
	}
	svc := newService(reg, nil, nil)

	results := make([]fileResult, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Convert.MaxConcurrent)

	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			results[i] = convertFile(ctx, cmd, svc, path)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := writeResults(results); err != nil {
		return err
	}
	return resultsError(results, convertStrict)
}

func convertFile(ctx context.Context, cmd *cobra.Command, svc *service.Service, path string) fileResult {
	res := fileResult{File: path, Schema: flagSchema, Errors: []report.CellMessage{}}

	f, err := os.Open(path)
	if err != nil {
		return failed(res, err)
	}
	defer f.Close()

	out, err := svc.Convert(ctx, fileRequest(cmd, f, path))
	if err != nil {
		return failed(res, err)
	}

	res.Records = len(out.Result.Rows)
	res.Errors = report.DescribeAll(out.Result.Errors)
	res.Summary = report.Summary(out.Result.Errors)
	if !convertNoRows {
		res.Rows = out.Result.Rows
	}
	return res
}

// fileRequest builds a service request for a local file from the shared flags.
func fileRequest(cmd *cobra.Command, r io.Reader, path string) service.Request {
	req := service.Request{
		Schema:   flagSchema,
		Body:     r,
		Filename: filepath.Base(path),
		Format:   flagFormat,
		Sheet:    flagSheet,
	}
	if cmd.Flags().Changed("columns") {
		columns := flagColumns
		req.ColumnOriented = &columns
	}
	return req
}

// failed records a fatal error for one file and logs the technical details.
func failed(res fileResult, err error) fileResult {
	ue := report.NewUserError(err)
	res.Failure = &ue.User
	slog.Error("file failed", "file", res.File, "code", ue.User.Code, "error", ue.Technical)
	return res
}

// writeResults prints one object for a single file, an array otherwise.
func writeResults(results []fileResult) error {
	var w io.Writer = os.Stdout
	if convertOutput != "" {
		f, err := os.Create(convertOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	if convertPretty {
		enc.SetIndent("", "  ")
	}
	if len(results) == 1 {
		return enc.Encode(results[0])
	}
	return enc.Encode(results)
}

// resultsError reports failed files, and cell errors when strict is set.
func resultsError(results []fileResult, strict bool) error {
	var failedFiles, cellErrors int
	for _, r := range results {
		if r.Failure != nil {
			failedFiles++
		}
		cellErrors += len(r.Errors)
	}

	switch {
	case failedFiles > 0:
		return fmt.Errorf("%d of %d files failed", failedFiles, len(results))
	case strict && cellErrors > 0:
		return fmt.Errorf("%w: %d cells", errCellErrors, cellErrors)
	}
	return nil
}
