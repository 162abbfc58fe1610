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

// Package catalog reads metadata back out of the catalog via its GraphQL
// API. It is the query-side counterpart of the emit package and backs the
// query subcommand.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/runlens/runlens/pkg/errors"
	"github.com/runlens/runlens/pkg/httpclient"
)

const (
	graphqlPath    = "/api/graphql"
	defaultTimeout = 30 * time.Second

	// defaultPageSize bounds search result pages.
	defaultPageSize = 10
)

// Options configures a Client.
type Options struct {
	// GMSURL is the catalog metadata service base URL.
	GMSURL string

	// Token is the personal access token, if the catalog requires one.
	Token string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// Client executes GraphQL queries against the catalog.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a catalog query client.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.GMSURL == "" {
		return nil, &errors.ValidationError{
			Field:      "gms_url",
			Message:    "catalog URL is required",
			Suggestion: "set DATAHUB_GMS_URL or catalog.gms_url in the config file",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := strings.TrimRight(opts.GMSURL, "/")
	// A frontend URL proxies the metadata service under /api/gms.
	if strings.Contains(baseURL, ":9002") && !strings.HasSuffix(baseURL, "/api/gms") {
		baseURL += "/api/gms"
	}

	cfg := httpclient.DefaultConfig()
	cfg.UserAgent = "runlens-catalog/1.0"
	cfg.Timeout = defaultTimeout
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	// GraphQL queries are read-only POSTs.
	cfg.AllowNonIdempotentRetry = true

	httpClient, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Client{
		baseURL: baseURL,
		token:   opts.Token,
		http:    httpClient,
		logger:  logger.With("component", "catalog"),
	}, nil
}

// graphqlRequest is the standard GraphQL POST body.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphqlError is a single error entry in a GraphQL response.
type graphqlError struct {
	Message string `json:"message"`
}

// Query executes a raw GraphQL query and decodes the data payload into out.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	if variables == nil {
		variables = map[string]any{}
	}
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}

	endpoint := c.baseURL + graphqlPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &errors.CatalogError{
			Endpoint: endpoint,
			Message:  "GraphQL request failed",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &errors.CatalogError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return &errors.CatalogError{
			Endpoint: endpoint,
			Message:  envelope.Errors[0].Message,
		}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode data payload: %w", err)
		}
	}
	return nil
}
