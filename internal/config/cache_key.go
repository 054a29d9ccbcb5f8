package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AssembledTestKey returns the cache key for an in-progress assembled test
func (r *CacheKeyStruct) AssembledTestKey(testID string) string {
	return fmt.Sprintf("test:%s:assembled", testID)
}

// TestAnswersKey returns the cache key for a test's autosaved answers
func (r *CacheKeyStruct) TestAnswersKey(testID string) string {
	return fmt.Sprintf("test:%s:answers", testID)
}

// CandidateProfileKey returns the cache key for a backend candidate profile
func (r *CacheKeyStruct) CandidateProfileKey(candidateID string) string {
	return fmt.Sprintf("candidate:%s:profile", candidateID)
}

var CacheKey = NewCacheKeyStruct()
