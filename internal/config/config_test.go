package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("SYNC_RETRY_DELAY_MS", "")
	t.Setenv("SYNC_RETENTION_MINUTES", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Nil(t, cfg.AllowedOrigins)
	assert.Equal(t, 500*time.Millisecond, cfg.SyncRetryDelay)
	assert.Equal(t, 10*time.Minute, cfg.SyncRetention)
	assert.Equal(t, DefaultThresholds, cfg.Thresholds)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("BACKEND_BASE_URL", "http://backend:8000/")
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "3")
	t.Setenv("TEST_GRACE_MINUTES", "not-a-number")

	cfg := Load()
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "http://backend:8000", cfg.BackendBaseURL)
	assert.Equal(t, 3*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 15*time.Minute, cfg.TestGracePeriod)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "test:abc:assembled", CacheKey.AssembledTestKey("abc"))
	assert.Equal(t, "test:abc:answers", CacheKey.TestAnswersKey("abc"))
	assert.Equal(t, "candidate:42:profile", CacheKey.CandidateProfileKey("42"))
}
