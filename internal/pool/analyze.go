package pool

import (
	"sort"
	"strings"

	"github.com/skillcheck/assessment-backend/internal/model"
)

// Analysis summarizes a question set for authoring review.
type Analysis struct {
	Total int `json:"total"`
	// ByType counts questions per type and difficulty.
	ByType map[model.QuestionType]map[model.Difficulty]int `json:"by_type"`
	// AnswerPositions counts how often each answer_index is keyed.
	// A heavily skewed histogram lets candidates guess by position.
	AnswerPositions map[int]int `json:"answer_positions"`
	// DuplicateStems lists ids sharing a normalized stem.
	DuplicateStems [][]string `json:"duplicate_stems,omitempty"`
	Passages       int        `json:"passages"`
}

// Analyze computes distribution and duplication statistics.
func Analyze(questions []model.Question) Analysis {
	a := Analysis{
		Total:           len(questions),
		ByType:          make(map[model.QuestionType]map[model.Difficulty]int),
		AnswerPositions: make(map[int]int),
	}
	stems := make(map[string][]string)
	passages := make(map[string]bool)

	for _, q := range questions {
		if a.ByType[q.Type] == nil {
			a.ByType[q.Type] = make(map[model.Difficulty]int)
		}
		a.ByType[q.Type][q.Difficulty]++
		a.AnswerPositions[q.AnswerIndex]++

		norm := strings.Join(strings.Fields(strings.ToLower(q.Stem)), " ")
		stems[norm] = append(stems[norm], q.ID)
		if q.PassageID != "" {
			passages[q.PassageID] = true
		}
	}
	a.Passages = len(passages)

	for stem, ids := range stems {
		if len(ids) > 1 && stem != "" {
			a.DuplicateStems = append(a.DuplicateStems, ids)
		}
	}
	sort.Slice(a.DuplicateStems, func(i, j int) bool {
		return a.DuplicateStems[i][0] < a.DuplicateStems[j][0]
	})
	return a
}
