package model

import (
	"errors"
	"fmt"
	"strings"
)

// Difficulty is the tier a question is balanced on when assembling a test.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// DefaultDifficulty is applied to pool entries that omit or garble the field.
const DefaultDifficulty = DifficultyMedium

// ParseDifficulty normalizes s and reports whether it names a known tier.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	default:
		return "", false
	}
}

// QuestionType names the item family inside a pool (analogy, classification, sjt, ...).
type QuestionType string

const (
	QuestionTypeAnalogy        QuestionType = "analogy"
	QuestionTypeClassification QuestionType = "classification"
	QuestionTypeCodingDecoding QuestionType = "coding-decoding"
	QuestionTypeSituational    QuestionType = "sjt"
	QuestionTypeAbstract       QuestionType = "abstract"
	QuestionTypeSpatial        QuestionType = "spatial"
	QuestionTypeNumerical      QuestionType = "numerical"
	QuestionTypeReading        QuestionType = "reading"
	QuestionTypeTechnical      QuestionType = "technical"
)

// Question is a single multiple-choice item from a pool.
type Question struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Stem        string       `json:"stem"`
	Choices     []string     `json:"choices"`
	AnswerIndex int          `json:"answer_index"`
	Answer      string       `json:"answer,omitempty"`
	Difficulty  Difficulty   `json:"difficulty"`
	Tags        []string     `json:"tags"`
	Explanation string       `json:"explanation,omitempty"`
	// PassageID groups reading-comprehension items that must stay together,
	// ordered by Position.
	PassageID string   `json:"passage_id,omitempty"`
	Position  int      `json:"position,omitempty"`
	Content   *Content `json:"content,omitempty"`
}

var (
	ErrTooFewChoices      = errors.New("question needs at least two choices")
	ErrAnswerOutOfRange   = errors.New("answer_index out of range")
	ErrAnswerTextMismatch = errors.New("answer does not match choice at answer_index")
	ErrEmptyStem          = errors.New("question stem is empty")
)

// Validate checks the structural invariants every pooled question must hold.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Stem) == "" {
		return ErrEmptyStem
	}
	if len(q.Choices) < 2 {
		return ErrTooFewChoices
	}
	if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Choices) {
		return fmt.Errorf("%w: %d of %d", ErrAnswerOutOfRange, q.AnswerIndex, len(q.Choices))
	}
	if q.Answer != "" && q.Choices[q.AnswerIndex] != q.Answer {
		return ErrAnswerTextMismatch
	}
	if q.Content != nil {
		if err := q.Content.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsCorrect reports whether choice is the keyed answer.
func (q Question) IsCorrect(choice int) bool {
	return choice == q.AnswerIndex
}

// Clone returns a deep copy so callers can never alias pool storage.
// Nil tags become an empty list, matching what the pool reader produces.
func (q Question) Clone() Question {
	c := q
	c.Choices = append([]string(nil), q.Choices...)
	c.Tags = append([]string{}, q.Tags...)
	if q.Content != nil {
		cc := q.Content.Clone()
		c.Content = &cc
	}
	return c
}

// QuestionForCandidate is a question without its key, sent to the test taker.
type QuestionForCandidate struct {
	ID        string       `json:"id"`
	Type      QuestionType `json:"type"`
	Stem      string       `json:"stem"`
	Choices   []string     `json:"choices"`
	PassageID string       `json:"passage_id,omitempty"`
	Position  int          `json:"position,omitempty"`
	Content   *Content     `json:"content,omitempty"`
}

// ForCandidate strips the answer key and explanation.
func (q Question) ForCandidate() QuestionForCandidate {
	c := q.Clone()
	return QuestionForCandidate{
		ID:        c.ID,
		Type:      c.Type,
		Stem:      c.Stem,
		Choices:   c.Choices,
		PassageID: c.PassageID,
		Position:  c.Position,
		Content:   c.Content,
	}
}
