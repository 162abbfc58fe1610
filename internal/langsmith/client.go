// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package langsmith fetches run history from the LangSmith API. Queries are
// cursor-paginated and rate limited client-side so large backfills stay
// under the platform's request quota.
package langsmith

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/runlens/runlens/pkg/errors"
	"github.com/runlens/runlens/pkg/httpclient"
)

const (
	// DefaultEndpoint is the hosted LangSmith API.
	DefaultEndpoint = "https://api.smith.langchain.com"

	// requestsPerSecond caps outbound query rate. The hosted platform
	// throttles around 10 rps per key; stay comfortably below.
	requestsPerSecond = 5

	// pageSize is the per-request run count for paginated queries.
	pageSize = 100
)

// Options configures a Client.
type Options struct {
	// APIKey authenticates requests via the x-api-key header.
	APIKey string

	// Endpoint overrides the API base URL.
	Endpoint string

	// Project is the tracer project to query.
	Project string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// Client talks to the LangSmith REST API.
type Client struct {
	apiKey   string
	endpoint string
	project  string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger

	// sessionID caches the resolved project ID.
	sessionID string
}

// New creates a LangSmith client.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, &errors.ValidationError{
			Field:      "api_key",
			Message:    "LangSmith API key is required",
			Suggestion: "set LANGSMITH_API_KEY",
		}
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := httpclient.DefaultConfig()
	cfg.UserAgent = "runlens-langsmith/1.0"
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	// Query POSTs are read-only; safe to retry.
	cfg.AllowNonIdempotentRetry = true

	httpClient, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Client{
		apiKey:   opts.APIKey,
		endpoint: opts.Endpoint,
		project:  opts.Project,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		logger:   logger.With("component", "langsmith"),
	}, nil
}

// ListOptions filters a run query.
type ListOptions struct {
	// StartTime bounds the query window; zero means unbounded.
	StartTime time.Time

	// EndTime bounds the query window; zero means unbounded.
	EndTime time.Time

	// Limit caps the total number of runs returned; zero means no cap.
	Limit int

	// RootOnly restricts results to top-level runs.
	RootOnly bool
}

// ListRuns fetches runs for the configured project, following cursors until
// the limit or the end of the result set.
func (c *Client) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	sessionID, err := c.resolveSession(ctx)
	if err != nil {
		return nil, err
	}

	req := queryRequest{
		Limit: pageSize,
	}
	if sessionID != "" {
		req.Session = []string{sessionID}
	}
	if !opts.StartTime.IsZero() {
		t := opts.StartTime.UTC()
		req.StartTime = &t
	}
	if !opts.EndTime.IsZero() {
		t := opts.EndTime.UTC()
		req.EndTime = &t
	}
	if opts.RootOnly {
		root := true
		req.IsRoot = &root
	}
	if opts.Limit > 0 && opts.Limit < pageSize {
		req.Limit = opts.Limit
	}

	var runs []Run
	for {
		page, next, err := c.queryPage(ctx, req)
		if err != nil {
			return runs, err
		}
		runs = append(runs, page...)

		if opts.Limit > 0 && len(runs) >= opts.Limit {
			return runs[:opts.Limit], nil
		}
		if next == "" || len(page) == 0 {
			return runs, nil
		}
		req.Cursor = next
	}
}

// queryPage issues one POST /runs/query request.
func (c *Client) queryPage(ctx context.Context, query queryRequest) ([]Run, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, "", fmt.Errorf("encoding run query: %w", err)
	}

	endpoint := c.endpoint + "/runs/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", errors.Wrapf(err, "querying runs from %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", c.responseError(resp)
	}

	var result queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "", errors.Wrap(err, "decoding run query response")
	}

	c.logger.Debug("fetched run page",
		"count", len(result.Runs),
		"duration", time.Since(start),
		"has_next", result.Cursors.Next != "")

	return result.Runs, result.Cursors.Next, nil
}

// resolveSession looks up the project's session ID, caching the result.
// An empty project name queries across all sessions.
func (c *Client) resolveSession(ctx context.Context) (string, error) {
	if c.sessionID != "" || c.project == "" {
		return c.sessionID, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	endpoint := c.endpoint + "/sessions?name=" + url.QueryEscape(c.project)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "resolving project %q", c.project)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.responseError(resp)
	}

	var sessions []Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return "", errors.Wrap(err, "decoding sessions response")
	}

	for _, s := range sessions {
		if s.Name == c.project {
			c.sessionID = s.ID
			return c.sessionID, nil
		}
	}

	return "", &errors.NotFoundError{Resource: "project", ID: c.project}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
}

// responseError converts a non-200 response into a typed error.
func (c *Client) responseError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 30 * time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &errors.RateLimitError{Service: "langsmith", RetryAfter: retryAfter}
	}

	return &errors.PlatformError{
		Platform:   "langsmith",
		StatusCode: resp.StatusCode,
		Message:    string(msg),
		Suggestion: suggestionFor(resp.StatusCode),
	}
}

func suggestionFor(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "check that LANGSMITH_API_KEY is valid for this workspace"
	case http.StatusNotFound:
		return "check LANGCHAIN_ENDPOINT; hosted deployments serve the API at the root path"
	default:
		return ""
	}
}
