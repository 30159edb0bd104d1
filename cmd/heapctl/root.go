package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/mcuheap/heap/printer"
	"github.com/joshuapare/mcuheap/internal/logger"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	size    int
	logDir  string

	// cfg is loaded before every command runs
	cfg = &Config{Size: 65536, Seed: 1, Checked: true, LogLevel: "info", Format: "text"}
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Exercise and inspect the mcuheap allocator",
	Long: `heapctl replays allocation scenarios against the mcuheap first-fit
allocator, prints its free list and memory, and runs randomized stress tests
with simulated interrupt handlers allocating alongside the main program.

Settings are read from HEAPCTL_* environment variables and can be overridden
with flags.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().IntVar(&size, "size", 0, "Heap size in bytes (default from HEAPCTL_SIZE)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Write logs to this directory")
}

// loadSettings merges environment configuration with flags and sets up
// logging.
func loadSettings(cmd *cobra.Command, _ []string) error {
	c, err := LoadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("size") {
		c.Size = size
	}
	if cmd.Flags().Changed("log-dir") {
		c.LogDir = logDir
	}
	if cmd.Flags().Changed("json") && jsonOut {
		c.Format = "json"
	}
	jsonOut = c.Format == "json"
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	level, _ := c.Level()
	if verbose {
		level = min(level, slog.LevelDebug)
	}
	return logger.Init(logger.Options{
		Enabled: c.LogDir != "",
		LogDir:  c.LogDir,
		Level:   level,
		JSON:    true,
	})
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// newPrinter returns a printer on stdout honoring --json.
func newPrinter() *printer.Printer {
	opts := printer.DefaultOptions()
	if jsonOut {
		opts.Format = printer.FormatJSON
	}
	return printer.New(os.Stdout, opts)
}
