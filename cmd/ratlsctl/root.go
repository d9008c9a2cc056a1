// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for ratlsctl.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ratlsctl/internal/config"
	"ratlsctl/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "ratlsctl",
		Short: "RA-TLS preload injection for Gramine manifests",
		Long: TitleStyle.Render("ratlsctl") + SubtitleStyle.Render(" - RA-TLS preload injection for Gramine manifests") + `

ratlsctl rewrites Gramine manifests so that libratls-quote-verify.so is
loaded into the process via LD_PRELOAD, enabling transparent RA-TLS
quote verification without hand-editing manifests.

Injection applies only to manifests that enable DCAP remote attestation,
is idempotent, and preserves all unrelated manifest content verbatim.
It can be disabled with DISABLE_RATLS_PRELOAD=1, and the library path
can be overridden with RATLS_PRELOAD_SO.

` + SubtitleStyle.Render("Examples:") + `
  ratlsctl inject app.manifest     Post-process a generated manifest
  ratlsctl wrap app.manifest.template app.manifest
                                   Run gramine-manifest, then inject
  ratlsctl locate                  Print the resolved library path`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(wrapCmd)
	rootCmd.AddCommand(locateCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// newLogger builds the CLI logger. Warnings always surface; --verbose
// additionally shows debug detail.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "ratlsctl",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// loadSettings reads the environment settings, downgrading load failures to
// a warning and falling back to defaults.
func loadSettings(logger *log.Logger) config.Settings {
	settings, err := config.Load()
	if err != nil {
		logger.Warn(issue.WrapWithOperation(err, "load settings").Error())
		return config.Defaults()
	}
	return settings
}
