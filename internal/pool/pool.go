package pool

import (
	"fmt"
	"sort"

	"github.com/skillcheck/assessment-backend/internal/model"
)

type bucketKey struct {
	qtype      model.QuestionType
	difficulty model.Difficulty
}

// Pool is an immutable, named set of questions indexed by type and difficulty.
// Every accessor hands out copies.
type Pool struct {
	name      string
	questions []model.Question
	byID      map[string]int
	buckets   map[bucketKey][]int
}

// NewPool validates and copies questions into a read-only pool.
func NewPool(name string, questions []model.Question) (*Pool, error) {
	p := &Pool{
		name:      name,
		questions: make([]model.Question, 0, len(questions)),
		byID:      make(map[string]int, len(questions)),
		buckets:   make(map[bucketKey][]int),
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("pool %s: question %s: %w", name, q.ID, err)
		}
		if _, dup := p.byID[q.ID]; dup {
			return nil, fmt.Errorf("pool %s: duplicate question id %s", name, q.ID)
		}
		i := len(p.questions)
		p.questions = append(p.questions, q.Clone())
		p.byID[q.ID] = i
		k := bucketKey{qtype: q.Type, difficulty: q.Difficulty}
		p.buckets[k] = append(p.buckets[k], i)
	}
	return p, nil
}

// Name returns the test type the pool serves.
func (p *Pool) Name() string { return p.name }

// Len returns the number of questions in the pool.
func (p *Pool) Len() int { return len(p.questions) }

// Question looks a question up by id.
func (p *Pool) Question(id string) (model.Question, bool) {
	i, ok := p.byID[id]
	if !ok {
		return model.Question{}, false
	}
	return p.questions[i].Clone(), true
}

// Questions returns every question in file order.
func (p *Pool) Questions() []model.Question {
	return p.Select(func(model.Question) bool { return true })
}

// Select returns copies of the questions accepted by match, in file order.
func (p *Pool) Select(match func(model.Question) bool) []model.Question {
	var out []model.Question
	for _, q := range p.questions {
		if match(q) {
			out = append(out, q.Clone())
		}
	}
	return out
}

// Count returns how many questions match the bucket.
func (p *Pool) Count(b model.Bucket) int {
	if b.Type != "" && b.Difficulty != "" {
		return len(p.buckets[bucketKey{qtype: b.Type, difficulty: b.Difficulty}])
	}
	n := 0
	for _, q := range p.questions {
		if b.Matches(q) {
			n++
		}
	}
	return n
}

// Distribution counts questions per type and difficulty.
func (p *Pool) Distribution() map[model.QuestionType]map[model.Difficulty]int {
	out := make(map[model.QuestionType]map[model.Difficulty]int)
	for k, idx := range p.buckets {
		if out[k.qtype] == nil {
			out[k.qtype] = make(map[model.Difficulty]int)
		}
		out[k.qtype][k.difficulty] = len(idx)
	}
	return out
}

// Types lists the question types present, sorted.
func (p *Pool) Types() []model.QuestionType {
	seen := make(map[model.QuestionType]bool)
	for k := range p.buckets {
		seen[k.qtype] = true
	}
	types := make([]model.QuestionType, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
