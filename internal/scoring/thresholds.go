package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skillcheck/assessment-backend/internal/blueprint"
	"github.com/skillcheck/assessment-backend/internal/model"
)

// ParseThresholds reads "min:label" pairs separated by commas,
// e.g. "80:excellent,60:good,0:needs improvement".
func ParseThresholds(s string) ([]model.Threshold, error) {
	var out []model.Threshold
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		minStr, label, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("threshold %q: expected min:label", part)
		}
		min, err := strconv.Atoi(strings.TrimSpace(minStr))
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", part, err)
		}
		out = append(out, model.Threshold{Min: min, Label: strings.TrimSpace(label)})
	}
	if err := blueprint.ValidateThresholds(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Classify returns the label of the first threshold whose min is met.
// Thresholds must be descending.
func Classify(percentage int, thresholds []model.Threshold) string {
	for _, t := range thresholds {
		if percentage >= t.Min {
			return t.Label
		}
	}
	if len(thresholds) == 0 {
		return ""
	}
	return thresholds[len(thresholds)-1].Label
}
