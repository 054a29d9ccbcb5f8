package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// FlexibleID accepts both numeric and string identifiers from the backend.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

// Skill is a candidate skill as listed by the backend.
type Skill struct {
	Name  string `json:"name"`
	Level string `json:"level,omitempty"`
}

// Badge is awarded by the backend for completed assessments.
type Badge struct {
	Name      string     `json:"name"`
	AwardedAt *time.Time `json:"awarded_at,omitempty"`
}

// CandidateProfile mirrors GET /api/candidates/{id}/ on the backend.
type CandidateProfile struct {
	ID     FlexibleID `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email,omitempty"`
	Skills []Skill    `json:"skills"`
	Badges []Badge    `json:"badges"`
}

// ResultRecord is one entry of GET /api/results/ on the backend.
type ResultRecord struct {
	ID FlexibleID `json:"id"`
	SubmissionResult
}
