package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"tcgsync/pkg/config"
	"tcgsync/pkg/logger"
	"tcgsync/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile    string
	logLevel      string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "tcgsync",
	Short: "Extract TCGplayer seller orders into local or S3 storage",
	Long: `tcgsync pulls orders from the TCGplayer seller portal for a date range and
stores one JSON document per order, either in a local directory or in an
S3-compatible bucket.

Features:
  - Reuses the cookies of a signed-in browser session
  - Filters by order type (Normal, Direct or All)
  - Skips existing orders or rewrites only changed ones (MD5 comparison)
  - Resumes interrupted extractions from a checkpoint
  - Copies archives between S3 and local storage`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetColor(!noColor)
		if quiet {
			ui.Output = io.Discard
		}
		switch cmd.Name() {
		case "version", "help", "completion", "show":
		default:
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits 1 on any error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.Output = os.Stderr
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.tcgsync.yaml or ~/.config/tcgsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send a desktop notification when an extraction ends")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print one line per order and debug logs")

	rootCmd.SetVersionTemplate(`tcgsync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges flags over the config file and environment, then sets
// up the global logger.
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case verbose:
		flags["log-level"] = "debug"
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
