// Package main is kiss's thin cobra front end: it parses flags, loads
// configuration, wires one internal/kbuild.Orchestrator per invocation, and
// translates its errors into a process exit code. Nothing resembling an
// algorithm lives here — that is what internal/ is for — mirroring how the
// teacher's internal/cmd defers everything past flag parsing to
// internal/app.Application.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kissforge/kiss/internal/klog"
)

var (
	cfgFile    string
	verbose    bool
	realStdout *os.File
)

var rootCmd = &cobra.Command{
	Use:   "kiss",
	Short: "A source-first package manager",
	Long: `kiss builds and installs packages from source: resolving
dependencies, fetching and verifying sources, invoking a package's build
script, and packing the result into a tarball other machines can install
without rebuilding.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		realStdout = os.Stdout

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		handler := klog.NewHandler(realStdout, level)
		slog.SetDefault(slog.New(handler))

		cmd.SetOut(realStdout)
		cmd.SetErr(realStdout)
	},
}

// ExecuteContext runs the root command with ctx, the context main cancels on
// a shutdown signal.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/etc/kiss/config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(checksumCmd)
	rootCmd.AddCommand(listCmd)
}
