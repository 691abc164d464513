package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetconv/internal/report"
	"github.com/JonMunkholm/sheetconv/internal/service"
	"github.com/JonMunkholm/sheetconv/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Convert files and copy the records into Postgres",
	Long: `Convert files against a schema and copy the records into the schema's
table with COPY. Requires DATABASE_URL.

A file with cell errors is not imported unless --partial is given, in which
case the valid records are imported and the errors are still reported.

Examples:
  sheetconv import -s sfdc_customers customers.csv
  sheetconv import -s anrok_transactions --partial q1.xlsx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var importPartial bool

func init() {
	importCmd.Flags().BoolVar(&importPartial, "partial", false, "import valid records even when some cells fail")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if !cfg.Database.Enabled() {
		return fmt.Errorf("%w: set DATABASE_URL", store.ErrNoDatabase)
	}

	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	def, err := reg.Lookup(flagSchema)
	if err != nil {
		return err
	}
	if def.Table == "" {
		return fmt.Errorf("%w: schema %q", store.ErrNoTable, def.Key)
	}

	pool, err := openPool(cmd.Context())
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := newService(reg, pool, nil)

	// Files are imported one at a time so a failure leaves earlier files committed
	// and later ones untouched.
	results := make([]fileResult, 0, len(args))
	for _, path := range args {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		results = append(results, importFile(cmd, svc, path))
	}

	if err := writeResults(results); err != nil {
		return err
	}
	return resultsError(results, false)
}

func importFile(cmd *cobra.Command, svc *service.Service, path string) fileResult {
	res := fileResult{File: path, Schema: flagSchema, Errors: []report.CellMessage{}}

	f, err := os.Open(path)
	if err != nil {
		return failed(res, err)
	}
	defer f.Close()

	req := fileRequest(cmd, f, path)
	req.AllowPartial = importPartial

	out, err := svc.Import(cmd.Context(), req)
	if out != nil {
		res.Records = len(out.Result.Rows)
		res.Errors = report.DescribeAll(out.Result.Errors)
		res.Summary = report.Summary(out.Result.Errors)
		res.Imported = out.Imported
	}
	if err != nil {
		if errors.Is(err, service.ErrHasErrors) {
			return failed(res, fmt.Errorf("%s: %w (use --partial to import the valid records)", path, err))
		}
		return failed(res, err)
	}
	return res
}
