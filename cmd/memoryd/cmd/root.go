// Package cmd provides the hook-script commands for memoryd: capture,
// inject, inject-brief, divergence, and session-end. Each reads one JSON
// document from stdin and writes one JSON document to stdout, exiting
// with a fixed exit-code taxonomy rather than cobra's default
// "0 on success, 1 on any error".
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/contextmemory/workmem/internal/logging"
)

// NewRootCmd creates the root command for memoryd.
func NewRootCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:           "memoryd",
		Short:         "Hook-script surface for the working-memory service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "directory holding the memory store, index, and config")

	cmd.AddCommand(newCaptureCmd(&dataDir))
	cmd.AddCommand(newInjectCmd(&dataDir))
	cmd.AddCommand(newInjectBriefCmd(&dataDir))
	cmd.AddCommand(newDivergenceCmd(&dataDir))
	cmd.AddCommand(newSessionEndCmd(&dataDir))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and exits with the taxonomy code
// derived from whatever error (if any) the command produced. Logging is
// set up in file-only mode first: every subcommand's stdout is reserved
// for exactly one JSON document, so nothing may write to stdout ahead of
// it the way a stray log line would.
func Execute() {
	cleanup, err := logging.SetupHookMode()
	if err != nil {
		os.Exit(exitCodeFor(err))
	}
	defer cleanup()

	code := 0
	if err := NewRootCmd().Execute(); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		code = exitCodeFor(err)
	}
	os.Exit(code)
}

func defaultDataDir() string {
	if v := os.Getenv("WORKMEM_DATA_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".workmem"
	}
	return home + "/.workmem"
}
