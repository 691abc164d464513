package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetconv/internal/config"
	"github.com/JonMunkholm/sheetconv/internal/logging"
	"github.com/JonMunkholm/sheetconv/internal/report"
)

var (
	// Global flags
	envFile   string
	schemaDir string
	logLevel  string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sheetconv",
	Short: "Convert spreadsheets into typed records using schema definitions",
	Long: `sheetconv reads CSV and XLSX files and converts every row into a typed
record, as described by a YAML schema definition. Invalid cells are
reported with their row and column instead of stopping the conversion.

Quick start:
  sheetconv schemas                          # List loaded schemas
  sheetconv convert -s sfdc_customers a.csv  # Convert a file to JSON
  sheetconv import -s sfdc_customers a.xlsx  # Convert and copy into Postgres
  sheetconv serve                            # Start the HTTP server

Configuration comes from environment variables (see .env.example).`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// The command context is cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorText(err))
		os.Exit(1)
	}
}

// errorText prefers the coded user message and falls back to the raw error.
func errorText(err error) string {
	if report.IsUserFacing(err) {
		return report.FormatUserError(err)
	}
	return err.Error()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load, if present")
	rootCmd.PersistentFlags().StringVar(&schemaDir, "schemas", "", "schema directory (overrides SCHEMA_DIR)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
}

// setup loads the environment file and configuration, then configures logging.
func setup(cmd *cobra.Command, _ []string) error {
	// Overload so the file wins over inherited variables
	if err := godotenv.Overload(envFile); err == nil {
		slog.Debug("loaded environment file", "path", envFile)
	} else if cmd.Flags().Changed("env-file") {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	c, err := config.Load()
	if err != nil {
		return err
	}
	if schemaDir != "" {
		c.Convert.SchemaDir = schemaDir
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	// CLI output goes to stdout, so logs go to stderr
	logger := logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	logger.Debug("configuration loaded", "config", cfg.String())
	return nil
}
