package service

import "errors"

var (
	ErrSessionNotFound    = errors.New("test session not found or expired")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrCandidateNotFound  = errors.New("candidate not found")
	ErrBackendUnavailable = errors.New("results backend unavailable")
)
