package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/skillcheck/assessment-backend/internal/pool"
	"github.com/spf13/cobra"
)

func newFixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix <pool.jsonl>",
		Short: "Rewrite a pool file in canonical form",
		Long: "fix reads a pool file, applies every repair the loader knows about, drops lines it cannot repair " +
			"and writes the surviving questions back one per line.",
		Args: cobra.ExactArgs(1),
		RunE: runFix,
	}
	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	cmd.Flags().Bool("in-place", false, "Overwrite the input file")
	cmd.Flags().Bool("metadata", true, "Append a total_items line")
	return cmd
}

func runFix(cmd *cobra.Command, args []string) error {
	path := args[0]
	output, _ := cmd.Flags().GetString("output")
	inPlace, _ := cmd.Flags().GetBool("in-place")
	withMeta, _ := cmd.Flags().GetBool("metadata")
	if inPlace {
		if output != "" {
			return fmt.Errorf("--in-place and --output are mutually exclusive")
		}
		output = path
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	report, err := pool.ReadJSONL(f, pool.ReadOptions{TestType: testTypeFor(cmd, path), Log: cmdLogger(cmd)})
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	for _, is := range report.Issues {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, is)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: kept %d questions, dropped %d lines\n", path, len(report.Questions), report.Dropped())

	if output == "" {
		return pool.WriteJSONL(cmd.OutOrStdout(), report.Questions, withMeta)
	}
	return writeAtomic(output, func(w io.Writer) error {
		return pool.WriteJSONL(w, report.Questions, withMeta)
	})
}

// writeAtomic writes through a temp file in the target directory and renames it.
// An existing target keeps its permissions; a new one is created 0644.
func writeAtomic(path string, write func(io.Writer) error) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".poolctl-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
