package main

import (
	"errors"
	"fmt"

	"github.com/skillcheck/assessment-backend/internal/assembler"
	"github.com/skillcheck/assessment-backend/internal/blueprint"
	"github.com/skillcheck/assessment-backend/internal/pool"
	"github.com/spf13/cobra"
)

var errValidationFailed = errors.New("validation failed")

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pool.jsonl>...",
		Short: "Check pool files and optionally a blueprint against them",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate,
	}
	cmd.Flags().Bool("strict", false, "Treat repaired lines as failures")
	cmd.Flags().String("blueprint", "", "Blueprint YAML that must be satisfiable from the pool")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	strict, _ := cmd.Flags().GetBool("strict")
	bpPath, _ := cmd.Flags().GetString("blueprint")
	log := cmdLogger(cmd)
	out := cmd.OutOrStdout()

	failed := false
	var pools []*pool.Pool
	for _, path := range args {
		p, report, err := pool.LoadFile(path, testTypeFor(cmd, path), log)
		if report != nil {
			for _, is := range report.Issues {
				fmt.Fprintf(out, "%s: %s\n", path, is)
			}
			if report.Dropped() > 0 {
				failed = true
			}
			if strict && len(report.Issues) > 0 {
				failed = true
			}
			if report.DeclaredTotal != nil && p != nil && *report.DeclaredTotal != p.Len() {
				fmt.Fprintf(out, "%s: total_items says %d, file holds %d\n", path, *report.DeclaredTotal, p.Len())
				failed = true
			}
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Fprintf(out, "%s: %d questions ok\n", path, p.Len())
		pools = append(pools, p)
	}

	if bpPath != "" {
		spec, err := blueprint.LoadFile(bpPath)
		if err != nil {
			return fmt.Errorf("blueprint %s: %w", bpPath, err)
		}
		for _, p := range pools {
			if p.Name() != spec.TestType {
				continue
			}
			// A trial assembly catches buckets that overlap and compete for questions.
			if _, err := assembler.New().Assemble(p, spec, "poolctl"); err != nil {
				fmt.Fprintf(out, "%s: %v\n", bpPath, err)
				failed = true
				continue
			}
			fmt.Fprintf(out, "%s: %d of %d questions satisfiable\n", bpPath, spec.TotalCount(), p.Len())
		}
	}

	if failed {
		return errValidationFailed
	}
	return nil
}
