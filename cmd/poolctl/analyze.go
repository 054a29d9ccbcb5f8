package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/skillcheck/assessment-backend/internal/model"
	"github.com/skillcheck/assessment-backend/internal/pool"
	"github.com/spf13/cobra"
)

var difficulties = []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <pool.jsonl>",
		Short: "Report type/difficulty distribution, answer-position skew and duplicate stems",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	cmd.Flags().Bool("json", false, "Print the analysis as JSON")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	p, _, err := pool.LoadFile(args[0], testTypeFor(cmd, args[0]), cmdLogger(cmd))
	if err != nil {
		return err
	}
	a := pool.Analyze(p.Questions())

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	printAnalysis(cmd.OutOrStdout(), p.Name(), a)
	return nil
}

func printAnalysis(w io.Writer, name string, a pool.Analysis) {
	fmt.Fprintf(w, "pool %s: %d questions, %d passages\n\n", name, a.Total, a.Passages)

	types := make([]string, 0, len(a.ByType))
	for t := range a.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)

	fmt.Fprintf(w, "%-16s %6s %6s %6s\n", "type", "easy", "medium", "hard")
	for _, t := range types {
		row := a.ByType[model.QuestionType(t)]
		fmt.Fprintf(w, "%-16s", t)
		for _, d := range difficulties {
			fmt.Fprintf(w, " %6d", row[d])
		}
		fmt.Fprintln(w)
	}

	positions := make([]int, 0, len(a.AnswerPositions))
	for pos := range a.AnswerPositions {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	fmt.Fprintln(w, "\nanswer positions:")
	for _, pos := range positions {
		n := a.AnswerPositions[pos]
		fmt.Fprintf(w, "  %d: %4d %s\n", pos, n, strings.Repeat("#", n*40/max(a.Total, 1)))
	}

	if len(a.DuplicateStems) > 0 {
		fmt.Fprintln(w, "\nduplicate stems:")
		for _, ids := range a.DuplicateStems {
			fmt.Fprintf(w, "  %s\n", strings.Join(ids, ", "))
		}
	}
}
