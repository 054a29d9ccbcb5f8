// Package blueprint loads the declarative TestSpec for each test type.
package blueprint

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skillcheck/assessment-backend/internal/model"
	"gopkg.in/yaml.v3"
)

var ErrNoSections = errors.New("blueprint has no sections")

// Parse decodes a single YAML blueprint document and validates it.
func Parse(data []byte) (model.TestSpec, error) {
	var spec model.TestSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return model.TestSpec{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return model.TestSpec{}, fmt.Errorf("parse yaml: multiple documents are not supported")
		}
		return model.TestSpec{}, fmt.Errorf("parse yaml: %w", err)
	}
	spec = normalize(spec)
	if err := Validate(spec); err != nil {
		return model.TestSpec{}, err
	}
	return spec, nil
}

func normalize(spec model.TestSpec) model.TestSpec {
	spec.TestType = strings.TrimSpace(spec.TestType)
	for i := range spec.Sections {
		for j := range spec.Sections[i].Buckets {
			b := &spec.Sections[i].Buckets[j]
			if d, ok := model.ParseDifficulty(string(b.Difficulty)); ok {
				b.Difficulty = d
			}
			b.Type = model.QuestionType(strings.ToLower(strings.TrimSpace(string(b.Type))))
		}
	}
	return spec
}

// Validate checks a TestSpec independently of any pool.
func Validate(spec model.TestSpec) error {
	if spec.TestType == "" {
		return errors.New("blueprint test_type is required")
	}
	if spec.TimeLimitMinutes <= 0 {
		return fmt.Errorf("blueprint %s: time_limit_minutes must be positive", spec.TestType)
	}
	if len(spec.Sections) == 0 {
		return fmt.Errorf("blueprint %s: %w", spec.TestType, ErrNoSections)
	}
	for _, sec := range spec.Sections {
		if len(sec.Buckets) == 0 {
			return fmt.Errorf("blueprint %s: section %q has no buckets", spec.TestType, sec.Name)
		}
		for _, b := range sec.Buckets {
			if b.Count <= 0 {
				return fmt.Errorf("blueprint %s: bucket %s count must be positive", spec.TestType, b)
			}
			if b.Difficulty != "" {
				if _, ok := model.ParseDifficulty(string(b.Difficulty)); !ok {
					return fmt.Errorf("blueprint %s: unknown difficulty %q", spec.TestType, b.Difficulty)
				}
			}
		}
	}
	if len(spec.Thresholds) > 0 {
		if err := ValidateThresholds(spec.Thresholds); err != nil {
			return fmt.Errorf("blueprint %s: %w", spec.TestType, err)
		}
	}
	return nil
}

// ValidateThresholds requires strictly descending minimums ending at 0.
func ValidateThresholds(ts []model.Threshold) error {
	if len(ts) == 0 {
		return errors.New("thresholds are empty")
	}
	for i, t := range ts {
		if t.Label == "" {
			return fmt.Errorf("threshold %d has no label", i)
		}
		if t.Min < 0 || t.Min > 100 {
			return fmt.Errorf("threshold %q min %d out of 0..100", t.Label, t.Min)
		}
		if i > 0 && t.Min >= ts[i-1].Min {
			return fmt.Errorf("thresholds must be strictly descending at %q", t.Label)
		}
	}
	if ts[len(ts)-1].Min != 0 {
		return errors.New("last threshold must have min 0")
	}
	return nil
}

// LoadFile reads one blueprint file.
func LoadFile(path string) (model.TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.TestSpec{}, fmt.Errorf("read blueprint: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return model.TestSpec{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return spec, nil
}

// Catalog maps test types to their blueprints.
type Catalog struct {
	specs map[string]model.TestSpec
}

// NewCatalog indexes specs by test type; duplicates are rejected.
func NewCatalog(specs ...model.TestSpec) (*Catalog, error) {
	c := &Catalog{specs: make(map[string]model.TestSpec, len(specs))}
	for _, s := range specs {
		if _, dup := c.specs[s.TestType]; dup {
			return nil, fmt.Errorf("duplicate blueprint for test type %q", s.TestType)
		}
		c.specs[s.TestType] = s
	}
	return c, nil
}

// LoadDir loads every *.yaml / *.yml file in dir.
func LoadDir(dir string) (*Catalog, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob blueprint dir: %w", err)
		}
		paths = append(paths, m...)
	}
	sort.Strings(paths)

	specs := make([]model.TestSpec, 0, len(paths))
	for _, p := range paths {
		spec, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return NewCatalog(specs...)
}

// Get returns the blueprint for testType.
func (c *Catalog) Get(testType string) (model.TestSpec, bool) {
	s, ok := c.specs[testType]
	return s, ok
}

// TestTypes lists catalogued test types, sorted.
func (c *Catalog) TestTypes() []string {
	out := make([]string, 0, len(c.specs))
	for t := range c.specs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
