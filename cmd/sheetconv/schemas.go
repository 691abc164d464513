package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetconv/internal/schema"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List schema definitions",
	Long: `List the schema definitions found in the schema directory.

Examples:
  sheetconv schemas
  sheetconv schemas --json
  sheetconv schemas show sfdc_customers
  sheetconv schemas validate ./schemas`,
	Args: cobra.NoArgs,
	RunE: runSchemasList,
}

var schemasShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print one definition as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemasShow,
}

var schemasValidateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check that every definition in a directory compiles",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchemasValidate,
}

var schemasJSON bool

func init() {
	schemasCmd.Flags().BoolVar(&schemasJSON, "json", false, "print as JSON")
	schemasCmd.AddCommand(schemasShowCmd, schemasValidateCmd)
	rootCmd.AddCommand(schemasCmd)
}

func runSchemasList(cmd *cobra.Command, _ []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	defs := reg.All()

	if schemasJSON {
		return json.NewEncoder(os.Stdout).Encode(defs)
	}

	if len(defs) == 0 {
		fmt.Println("No schemas found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tGROUP\tLABEL\tTABLE\tCOLUMNS")
	for _, d := range defs {
		table := d.Table
		if table == "" {
			table = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Key, d.Group, d.Label, table, truncate(strings.Join(d.Headers(), ", "), 60))
	}
	return w.Flush()
}

func runSchemasShow(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	def, err := reg.Lookup(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(def)
}

func runSchemasValidate(cmd *cobra.Command, args []string) error {
	dir := cfg.Convert.SchemaDir
	if len(args) == 1 {
		dir = args[0]
	}

	// A fresh registry also catches duplicate keys across files
	n, err := schema.NewRegistry().LoadDir(dir)
	if err != nil {
		return err
	}
	fmt.Printf("%d schema definitions in %s are valid\n", n, dir)
	fmt.Printf("parse functions: %s\n", strings.Join(schema.ParserNames(), ", "))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
