package pool

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// NotFoundError is returned for a test type with no registered pool.
type NotFoundError struct {
	TestType string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no question pool registered for test type %q", e.TestType)
}

// Store holds every pool loaded at process start. It has no mutation path,
// so concurrent readers need no locking.
type Store struct {
	pools map[string]*Pool
}

// NewStore registers pools by name. A later pool with the same name wins.
func NewStore(pools ...*Pool) *Store {
	s := &Store{pools: make(map[string]*Pool, len(pools))}
	for _, p := range pools {
		s.pools[p.Name()] = p
	}
	return s
}

// GetPool returns the pool for testType or *NotFoundError.
func (s *Store) GetPool(testType string) (*Pool, error) {
	p, ok := s.pools[testType]
	if !ok {
		return nil, &NotFoundError{TestType: testType}
	}
	return p, nil
}

// TestTypes lists registered pool names, sorted.
func (s *Store) TestTypes() []string {
	names := make([]string, 0, len(s.pools))
	for name := range s.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads one pool file. The report carries every repair and dropped line.
func LoadFile(path, testType string, log zerolog.Logger) (*Pool, *ReadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open pool file: %w", err)
	}
	defer f.Close()

	report, err := ReadJSONL(f, ReadOptions{TestType: testType, Log: log})
	if err != nil {
		return nil, report, err
	}
	p, err := NewPool(testType, report.Questions)
	if err != nil {
		return nil, report, err
	}
	return p, report, nil
}

// LoadDir loads every *.jsonl file in dir; the file stem names the test type.
func LoadDir(dir string, log zerolog.Logger) (*Store, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("glob pool dir: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no pool files in %s", dir)
	}
	sort.Strings(paths)

	pools := make([]*Pool, 0, len(paths))
	for _, path := range paths {
		testType := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		p, report, err := LoadFile(path, testType, log)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if report.DeclaredTotal != nil && *report.DeclaredTotal != p.Len() {
			log.Warn().
				Str("test_type", testType).
				Int("declared", *report.DeclaredTotal).
				Int("loaded", p.Len()).
				Msg("Pool size differs from total_items")
		}
		log.Info().
			Str("test_type", testType).
			Int("questions", p.Len()).
			Int("issues", len(report.Issues)).
			Msg("Question pool loaded")
		pools = append(pools, p)
	}
	return NewStore(pools...), nil
}
