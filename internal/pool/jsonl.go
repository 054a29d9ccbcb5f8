package pool

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/skillcheck/assessment-backend/internal/model"
)

// MetadataKey marks the optional trailing line that is not a question.
const MetadataKey = "total_items"

const maxLineBytes = 1 << 20

// Severity says what the reader did about a problem on a line.
type Severity string

const (
	SeverityRepaired Severity = "repaired"
	SeverityDropped  Severity = "dropped"
)

// Issue is a recoverable problem found while reading a pool file.
type Issue struct {
	Line       int      `json:"line"`
	QuestionID string   `json:"question_id,omitempty"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
}

func (i Issue) String() string {
	if i.QuestionID != "" {
		return fmt.Sprintf("line %d (%s): %s: %s", i.Line, i.QuestionID, i.Severity, i.Message)
	}
	return fmt.Sprintf("line %d: %s: %s", i.Line, i.Severity, i.Message)
}

// ReadReport is the outcome of reading one JSONL stream.
type ReadReport struct {
	Questions []model.Question
	Issues    []Issue
	// DeclaredTotal is the total_items value of the metadata line, if any.
	DeclaredTotal *int
}

// Dropped counts lines that could not be turned into a question.
func (r *ReadReport) Dropped() int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == SeverityDropped {
			n++
		}
	}
	return n
}

// ReadOptions configures ReadJSONL.
type ReadOptions struct {
	// TestType seeds generated ids and the default question type.
	TestType string
	Log      zerolog.Logger
}

// rawQuestion accepts the legacy spellings seen in pool files.
type rawQuestion struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Stem        string         `json:"stem"`
	Scenario    string         `json:"scenario"`
	Question    string         `json:"question"`
	Choices     []string       `json:"choices"`
	Options     []string       `json:"options"`
	AnswerIndex *int           `json:"answer_index"`
	Answer      string         `json:"answer"`
	Difficulty  string         `json:"difficulty"`
	Tags        []string       `json:"tags"`
	Explanation string         `json:"explanation"`
	PassageID   string         `json:"passage_id"`
	Position    int            `json:"position"`
	Content     *model.Content `json:"content"`
	ImageURL    string         `json:"image_url"`
	Table       [][]string     `json:"table"`
	Chart       map[string]any `json:"chart"`
}

// ReadJSONL parses newline-delimited questions, repairing what it can.
// Only I/O failures are returned as errors; bad lines become Issues.
func ReadJSONL(r io.Reader, opts ReadOptions) (*ReadReport, error) {
	log := opts.Log.With().Str("component", "pool_reader").Str("test_type", opts.TestType).Logger()
	report := &ReadReport{}
	seen := make(map[string]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		issue := func(sev Severity, id, format string, args ...any) {
			is := Issue{Line: lineNo, QuestionID: id, Severity: sev, Message: fmt.Sprintf(format, args...)}
			report.Issues = append(report.Issues, is)
			ev := log.Warn()
			if sev == SeverityDropped {
				ev = log.Error()
			}
			ev.Int("line", lineNo).Str("question_id", id).Msg(is.Message)
		}

		inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(line))
		if err != nil {
			issue(SeverityDropped, "", "malformed JSON: %v", err)
			continue
		}
		obj, ok := inst.(map[string]any)
		if !ok {
			issue(SeverityDropped, "", "line is not a JSON object")
			continue
		}
		if v, isMeta := obj[MetadataKey]; isMeta {
			if n, ok := metadataTotal(v); ok {
				report.DeclaredTotal = &n
			}
			continue
		}
		if err := validateLine(obj); err != nil {
			issue(SeverityDropped, stringField(obj, "id"), "%v", err)
			continue
		}

		var raw rawQuestion
		if err := json.Unmarshal(line, &raw); err != nil {
			issue(SeverityDropped, stringField(obj, "id"), "decode: %v", err)
			continue
		}

		q, repairs, err := repair(raw, opts.TestType, lineNo)
		for _, msg := range repairs {
			issue(SeverityRepaired, q.ID, "%s", msg)
		}
		if err != nil {
			issue(SeverityDropped, q.ID, "%v", err)
			continue
		}
		if first, dup := seen[q.ID]; dup {
			issue(SeverityDropped, q.ID, "duplicate id, first seen on line %d", first)
			continue
		}
		seen[q.ID] = lineNo
		report.Questions = append(report.Questions, q)
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("read jsonl: %w", err)
	}
	return report, nil
}

// repair applies the documented defaults and returns what it changed.
func repair(raw rawQuestion, testType string, lineNo int) (model.Question, []string, error) {
	var repairs []string

	q := model.Question{
		ID:          strings.TrimSpace(raw.ID),
		Type:        model.QuestionType(strings.ToLower(strings.TrimSpace(raw.Type))),
		Stem:        raw.Stem,
		Choices:     raw.Choices,
		Answer:      raw.Answer,
		Tags:        raw.Tags,
		Explanation: raw.Explanation,
		PassageID:   strings.TrimSpace(raw.PassageID),
		Position:    raw.Position,
		Content:     raw.Content,
	}

	if q.ID == "" {
		prefix := testType
		if prefix == "" {
			prefix = "q"
		}
		q.ID = fmt.Sprintf("%s-%d", prefix, lineNo)
		repairs = append(repairs, "missing id, generated "+q.ID)
	}

	if q.Type == "" {
		q.Type = model.QuestionType(testType)
		repairs = append(repairs, fmt.Sprintf("missing type, defaulted to %q", q.Type))
	}

	if strings.TrimSpace(q.Stem) == "" {
		switch {
		case strings.TrimSpace(raw.Scenario) != "":
			q.Stem = raw.Scenario
			repairs = append(repairs, "stem taken from scenario")
		case strings.TrimSpace(raw.Question) != "":
			q.Stem = raw.Question
			repairs = append(repairs, "stem taken from question")
		}
	}

	if len(q.Choices) == 0 && len(raw.Options) > 0 {
		q.Choices = raw.Options
		repairs = append(repairs, "choices taken from options")
	}

	if raw.Difficulty == "" {
		q.Difficulty = model.DefaultDifficulty
		repairs = append(repairs, fmt.Sprintf("missing difficulty, defaulted to %q", model.DefaultDifficulty))
	} else if d, ok := model.ParseDifficulty(raw.Difficulty); ok {
		q.Difficulty = d
	} else {
		q.Difficulty = model.DefaultDifficulty
		repairs = append(repairs, fmt.Sprintf("unknown difficulty %q, defaulted to %q", raw.Difficulty, model.DefaultDifficulty))
	}

	if q.Tags == nil {
		q.Tags = []string{}
	}

	idx := -1
	if raw.AnswerIndex != nil {
		idx = *raw.AnswerIndex
	}
	if q.Answer != "" {
		pos := indexOf(q.Choices, q.Answer)
		switch {
		case pos >= 0:
			if pos != idx {
				if raw.AnswerIndex == nil {
					repairs = append(repairs, fmt.Sprintf("missing answer_index, derived %d from answer", pos))
				} else {
					repairs = append(repairs, fmt.Sprintf("answer_index %d disagrees with answer, re-derived %d", idx, pos))
				}
				idx = pos
			}
			// indexOf tolerates case and surrounding space; store the choice verbatim.
			if q.Answer != q.Choices[pos] {
				repairs = append(repairs, fmt.Sprintf("answer %q normalized to choice %q", q.Answer, q.Choices[pos]))
				q.Answer = q.Choices[pos]
			}
		case idx >= 0 && idx < len(q.Choices):
			repairs = append(repairs, fmt.Sprintf("answer %q not among choices, kept answer_index %d", q.Answer, idx))
			q.Answer = ""
		}
	}
	if idx < 0 || idx >= len(q.Choices) {
		return q, repairs, fmt.Errorf("no resolvable answer: answer_index=%d with %d choices", idx, len(q.Choices))
	}
	q.AnswerIndex = idx

	if q.Content == nil {
		c, note := legacyContent(raw)
		q.Content = c
		if note != "" {
			repairs = append(repairs, note)
		}
	}

	if err := q.Validate(); err != nil {
		return q, repairs, err
	}
	return q, repairs, nil
}

// legacyContent folds top-level media keys into the tagged content variant.
func legacyContent(raw rawQuestion) (*model.Content, string) {
	var found []model.Content
	if raw.ImageURL != "" {
		found = append(found, model.Content{Kind: model.ContentImage, ImageURL: raw.ImageURL})
	}
	if len(raw.Table) > 0 {
		found = append(found, model.Content{Kind: model.ContentTable, Rows: raw.Table})
	}
	if len(raw.Chart) > 0 {
		found = append(found, model.Content{Kind: model.ContentChart, Chart: raw.Chart})
	}
	switch len(found) {
	case 0:
		return nil, ""
	case 1:
		return &found[0], fmt.Sprintf("legacy %s field folded into content", found[0].Kind)
	default:
		return &found[0], fmt.Sprintf("several legacy media fields, kept %s", found[0].Kind)
	}
}

func indexOf(choices []string, answer string) int {
	for i, c := range choices {
		if c == answer {
			return i
		}
	}
	want := strings.ToLower(strings.TrimSpace(answer))
	for i, c := range choices {
		if strings.ToLower(strings.TrimSpace(c)) == want {
			return i
		}
	}
	return -1
}

func metadataTotal(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// WriteJSONL writes questions one per line in the documented field set.
// With withMetadata, a trailing {"total_items": N} line is appended.
func WriteJSONL(w io.Writer, questions []model.Question, withMetadata bool) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for _, q := range questions {
		if err := enc.Encode(q); err != nil {
			return fmt.Errorf("encode question %s: %w", q.ID, err)
		}
	}
	if withMetadata {
		if err := enc.Encode(map[string]int{MetadataKey: len(questions)}); err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
	}
	return bw.Flush()
}
