package main

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/skillcheck/assessment-backend/internal/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "poolctl",
		Short:         "Inspect and repair question pool files",
		Long:          "poolctl checks JSONL question pools against the pool schema, rewrites them in canonical form and reports distribution statistics.",
		SilenceUsage:  true,
	}
	root.PersistentFlags().String("log-level", "warn", "Log level for reader diagnostics")
	root.PersistentFlags().String("test-type", "", "Test type used for generated ids (defaults to the file name)")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newFixCmd())
	root.AddCommand(newAnalyzeCmd())
	return root
}

func Execute() error {
	return newRootCmd().Execute()
}

func cmdLogger(cmd *cobra.Command) zerolog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.SetupWriter(cmd.ErrOrStderr(), level, "pretty")
}

// testTypeFor resolves --test-type, falling back to the file stem.
func testTypeFor(cmd *cobra.Command, path string) string {
	if tt, _ := cmd.Flags().GetString("test-type"); tt != "" {
		return tt
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
