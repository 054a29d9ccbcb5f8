// Package resultsync delivers graded results to the candidate backend.
package resultsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skillcheck/assessment-backend/internal/model"
)

const maxErrorBody = 4 << 10

// Client talks JSON to the backend's results and candidates endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// PostResult sends one graded result.
func (c *Client) PostResult(ctx context.Context, result *model.SubmissionResult) (*model.ServerAck, error) {
	var ack model.ServerAck
	if err := c.do(ctx, http.MethodPost, "/api/results/", result, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// ListResults accepts either a bare array or a paginated {"results": [...]} body.
func (c *Client) ListResults(ctx context.Context) ([]model.ResultRecord, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/results/", nil, &raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []model.ResultRecord
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		return out, nil
	}
	var page struct {
		Results []model.ResultRecord `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("decode results page: %w", err)
	}
	return page.Results, nil
}

func (c *Client) GetCandidate(ctx context.Context, id string) (*model.CandidateProfile, error) {
	var profile model.CandidateProfile
	path := "/api/candidates/" + url.PathEscape(id) + "/"
	if err := c.do(ctx, http.MethodGet, path, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
