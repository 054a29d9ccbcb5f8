package model

import (
	"fmt"
	"time"
)

// Bucket requests Count questions matching Difficulty and Type.
// An empty Difficulty or Type matches anything.
type Bucket struct {
	Difficulty Difficulty   `yaml:"difficulty,omitempty" json:"difficulty,omitempty"`
	Type       QuestionType `yaml:"type,omitempty" json:"type,omitempty"`
	Count      int          `yaml:"count" json:"count"`
}

// Matches reports whether q belongs to the bucket.
func (b Bucket) Matches(q Question) bool {
	if b.Difficulty != "" && q.Difficulty != b.Difficulty {
		return false
	}
	if b.Type != "" && q.Type != b.Type {
		return false
	}
	return true
}

func (b Bucket) String() string {
	d, t := string(b.Difficulty), string(b.Type)
	if d == "" {
		d = "any"
	}
	if t == "" {
		t = "any"
	}
	return fmt.Sprintf("%s/%s", d, t)
}

// Section groups buckets under shared instructions.
type Section struct {
	Name         string   `yaml:"name" json:"name"`
	Instructions string   `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	Buckets      []Bucket `yaml:"buckets" json:"buckets"`
}

// Threshold maps a minimum percentage to a classification label.
type Threshold struct {
	Min   int    `yaml:"min" json:"min"`
	Label string `yaml:"label" json:"label"`
}

// TestSpec is the declarative distribution one test instance is sampled from.
type TestSpec struct {
	TestType         string `yaml:"test_type" json:"test_type"`
	Title            string `yaml:"title" json:"title"`
	Instructions     string `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	TimeLimitMinutes int    `yaml:"time_limit_minutes" json:"time_limit_minutes"`
	// FixedOrder keeps sections in declared order instead of shuffling the
	// assembled set as a whole.
	FixedOrder bool        `yaml:"fixed_order,omitempty" json:"fixed_order,omitempty"`
	Sections   []Section   `yaml:"sections" json:"sections"`
	Thresholds []Threshold `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
}

// TotalCount is the number of questions an assembled instance will hold.
func (s TestSpec) TotalCount() int {
	n := 0
	for _, sec := range s.Sections {
		for _, b := range sec.Buckets {
			n += b.Count
		}
	}
	return n
}

func (s TestSpec) TimeLimit() time.Duration {
	return time.Duration(s.TimeLimitMinutes) * time.Minute
}

// TestTypeSummary is the catalog entry listed to clients.
type TestTypeSummary struct {
	TestType         string `json:"test_type"`
	Title            string `json:"title"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
	QuestionCount    int    `json:"question_count"`
	PoolSize         int    `json:"pool_size"`
}
