package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/config"
)

var (
	cfgPath    string
	logLevel   string
	logFormat  string
	jsonOutput bool

	// cfg and logger are set by the root command before any subcommand runs.
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "folio serves a portfolio site and manages its files, notes and todos",
	Long: `folio runs the portfolio site's file and record API, and doubles as the
admin device: log in, then manage notes, todos and files. While the server
is unreachable the admin commands keep working against a local store, and
"migrate" moves what was saved offline to the server later.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (json, text); overrides the config")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}
	l, err := config.NewLogger(c.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	cfg, logger = c, l
	return nil
}

// outputJSON writes v as indented JSON when --json is set and reports
// whether it did.
func outputJSON(w io.Writer, v any) (bool, error) {
	if !jsonOutput {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}
