// Package assembler draws randomized test instances from a question pool.
package assembler

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/skillcheck/assessment-backend/internal/model"
	"github.com/skillcheck/assessment-backend/internal/pool"
)

// Assembler is safe for concurrent use; every call gets its own random source.
type Assembler struct {
	newRand func() *rand.Rand
	now     func() time.Time
	newID   func() uuid.UUID
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithRandSource makes draws reproducible. The factory is called once per Assemble.
func WithRandSource(f func() *rand.Rand) Option {
	return func(a *Assembler) { a.newRand = f }
}

// WithClock sets the time source for StartedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithIDGenerator sets how test IDs are minted.
func WithIDGenerator(f func() uuid.UUID) Option {
	return func(a *Assembler) { a.newID = f }
}

// New creates a new Assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		now:   time.Now,
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble draws one instance of spec from p. The pool is never modified.
func (a *Assembler) Assemble(p *pool.Pool, spec model.TestSpec, candidateID string) (*model.AssembledTest, error) {
	r := a.newRand()
	used := make(map[string]struct{}, spec.TotalCount())
	sections := make([]model.AssembledSection, 0, len(spec.Sections))
	var drawn []model.Question

	for _, sec := range spec.Sections {
		start := len(drawn)
		for _, b := range sec.Buckets {
			candidates := p.Select(func(q model.Question) bool {
				if _, taken := used[q.ID]; taken {
					return false
				}
				return b.Matches(q)
			})
			if len(candidates) < b.Count {
				return nil, &InsufficientQuestionsError{
					TestType:  spec.TestType,
					Bucket:    b,
					Requested: b.Count,
					Available: len(candidates),
				}
			}
			r.Shuffle(len(candidates), func(i, j int) {
				candidates[i], candidates[j] = candidates[j], candidates[i]
			})
			for _, q := range candidates[:b.Count] {
				used[q.ID] = struct{}{}
				drawn = append(drawn, q)
			}
		}

		sectionQs := groupPassages(drawn[start:])
		copy(drawn[start:], flatten(sectionQs))
		ids := make([]string, 0, len(drawn)-start)
		for _, q := range drawn[start:] {
			ids = append(ids, q.ID)
		}
		sections = append(sections, model.AssembledSection{
			Name:         sec.Name,
			Instructions: sec.Instructions,
			QuestionIDs:  ids,
		})
	}

	ordered := drawn
	if !spec.FixedOrder {
		units := groupPassages(drawn)
		r.Shuffle(len(units), func(i, j int) {
			units[i], units[j] = units[j], units[i]
		})
		ordered = flatten(units)
	}

	var thresholds []model.Threshold
	if len(spec.Thresholds) > 0 {
		thresholds = append(thresholds, spec.Thresholds...)
	}

	return &model.AssembledTest{
		ID:               a.newID(),
		TestType:         spec.TestType,
		Title:            spec.Title,
		Instructions:     spec.Instructions,
		TimeLimitSeconds: int(spec.TimeLimit() / time.Second),
		CandidateID:      candidateID,
		Sections:         sections,
		Questions:        ordered,
		Thresholds:       thresholds,
		StartedAt:        a.now().UTC(),
	}, nil
}

// groupPassages splits qs into placement units. Questions sharing a
// passage_id form one unit, sorted by position, placed where the first
// member appeared; all others are singleton units.
func groupPassages(qs []model.Question) [][]model.Question {
	units := make([][]model.Question, 0, len(qs))
	passageUnit := make(map[string]int)
	for _, q := range qs {
		if q.PassageID == "" {
			units = append(units, []model.Question{q})
			continue
		}
		if idx, ok := passageUnit[q.PassageID]; ok {
			units[idx] = append(units[idx], q)
			continue
		}
		passageUnit[q.PassageID] = len(units)
		units = append(units, []model.Question{q})
	}
	for _, idx := range passageUnit {
		u := units[idx]
		sort.SliceStable(u, func(i, j int) bool { return u[i].Position < u[j].Position })
	}
	return units
}

func flatten(units [][]model.Question) []model.Question {
	n := 0
	for _, u := range units {
		n += len(u)
	}
	out := make([]model.Question, 0, n)
	for _, u := range units {
		out = append(out, u...)
	}
	return out
}
