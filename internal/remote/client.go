// Package remote writes session summaries to a hosted PostgREST-style
// backend.
package remote

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

	"github.com/rpggio/studytrack/internal/repository"
)

// ErrRemote is returned for non-2xx responses.
var ErrRemote = errors.New("remote store error")

// Client implements repository.RemoteStore over HTTP. Each call is a
// single upsert keyed by session_id.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for baseURL, e.g. https://x.example/rest/v1.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) UpsertStudySession(ctx context.Context, rec *repository.StudySessionRecord) error {
	return c.upsert(ctx, "study_sessions", rec)
}

func (c *Client) UpsertLearningAnalytics(ctx context.Context, rec *repository.LearningAnalyticsRecord) error {
	return c.upsert(ctx, "learning_analytics", rec)
}

func (c *Client) upsert(ctx context.Context, table string, row any) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s row: %w", table, err)
	}

	params := url.Values{}
	params.Set("on_conflict", "session_id")
	reqURL := c.baseURL + "/" + table + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: upsert %s: status %d: %s", ErrRemote, table, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
