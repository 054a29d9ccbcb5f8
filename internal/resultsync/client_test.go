package resultsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skillcheck/assessment-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ListResults(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"id": 1, "test_type": "verbal", "percentage": 80}, {"id": "b2", "test_type": "numerical"}]`},
		{"paginated", `{"count": 2, "next": null, "results": [{"id": 1, "test_type": "verbal", "percentage": 80}, {"id": "b2", "test_type": "numerical"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/results/", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewClient(srv.URL+"/", time.Second).ListResults(context.Background())
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, model.FlexibleID("1"), got[0].ID)
			assert.Equal(t, 80, got[0].Percentage)
			assert.Equal(t, model.FlexibleID("b2"), got[1].ID)
			assert.Equal(t, "numerical", got[1].TestType)
		})
	}
}

func TestClient_GetCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/candidates/42/" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": 42, "name": "Ada", "skills": [{"name": "go", "level": "senior"}], "badges": []}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, time.Second)

	p, err := c.GetCandidate(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, model.FlexibleID("42"), p.ID)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, []model.Skill{{Name: "go", Level: "senior"}}, p.Skills)

	_, err = c.GetCandidate(context.Background(), "7")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "Not found")
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).PostResult(context.Background(), sampleResult())
	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}
