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

package langsmith

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runlens/runlens/pkg/errors"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Options{
		APIKey:   "test-key",
		Endpoint: srv.URL,
		Project:  "default",
	}, nil)
	require.NoError(t, err)
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Options{}, nil)

	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "api_key", verr.Field)
}

func TestListRunsSinglePage(t *testing.T) {
	var gotQuery queryRequest
	handler := http.NewServeMux()
	handler.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "default", r.URL.Query().Get("name"))
		json.NewEncoder(w).Encode([]Session{{ID: "sess-1", Name: "default"}})
	})
	handler.HandleFunc("POST /runs/query", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotQuery))
		json.NewEncoder(w).Encode(queryResponse{
			Runs: []Run{
				{ID: "run-1", Name: "chat", RunType: "llm", Status: "success"},
				{ID: "run-2", Name: "chain", RunType: "chain", Status: "error", Error: "boom"},
			},
		})
	})

	client := testClient(t, handler)

	start := time.Now().Add(-24 * time.Hour)
	runs, err := client.ListRuns(context.Background(), ListOptions{
		StartTime: start,
		RootOnly:  true,
	})
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "boom", runs[1].Error)
	assert.Equal(t, []string{"sess-1"}, gotQuery.Session)
	require.NotNil(t, gotQuery.IsRoot)
	assert.True(t, *gotQuery.IsRoot)
	require.NotNil(t, gotQuery.StartTime)
	assert.WithinDuration(t, start.UTC(), *gotQuery.StartTime, time.Second)
}

func TestListRunsFollowsCursor(t *testing.T) {
	var cursors []string
	handler := http.NewServeMux()
	handler.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Session{{ID: "sess-1", Name: "default"}})
	})
	handler.HandleFunc("POST /runs/query", func(w http.ResponseWriter, r *http.Request) {
		var q queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		cursors = append(cursors, q.Cursor)

		resp := queryResponse{Runs: []Run{{ID: fmt.Sprintf("run-%d", len(cursors))}}}
		if len(cursors) < 3 {
			resp.Cursors.Next = fmt.Sprintf("cursor-%d", len(cursors))
		}
		json.NewEncoder(w).Encode(resp)
	})

	client := testClient(t, handler)

	runs, err := client.ListRuns(context.Background(), ListOptions{})
	require.NoError(t, err)

	assert.Len(t, runs, 3)
	assert.Equal(t, []string{"", "cursor-1", "cursor-2"}, cursors)
}

func TestListRunsHonorsLimit(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Session{{ID: "sess-1", Name: "default"}})
	})
	handler.HandleFunc("POST /runs/query", func(w http.ResponseWriter, r *http.Request) {
		resp := queryResponse{}
		for i := 0; i < 100; i++ {
			resp.Runs = append(resp.Runs, Run{ID: fmt.Sprintf("run-%d", i)})
		}
		resp.Cursors.Next = "more"
		json.NewEncoder(w).Encode(resp)
	})

	client := testClient(t, handler)

	runs, err := client.ListRuns(context.Background(), ListOptions{Limit: 150})
	require.NoError(t, err)
	assert.Len(t, runs, 150)
}

func TestListRunsUnknownProject(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Session{})
	})

	client := testClient(t, handler)

	_, err := client.ListRuns(context.Background(), ListOptions{})
	assert.True(t, errors.IsNotFound(err))
}

func TestListRunsRateLimited(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Session{{ID: "sess-1", Name: "default"}})
	})
	handler.HandleFunc("POST /runs/query", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := testClient(t, handler)

	_, err := client.ListRuns(context.Background(), ListOptions{})

	var rlErr *errors.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "langsmith", rlErr.Service)
	assert.True(t, errors.IsRetryable(err))
}

func TestListRunsAuthError(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	})

	client := testClient(t, handler)

	_, err := client.ListRuns(context.Background(), ListOptions{})

	var perr *errors.PlatformError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.Contains(t, perr.Suggestion, "LANGSMITH_API_KEY")
	assert.False(t, errors.IsRetryable(err))
}

func TestRunDecoding(t *testing.T) {
	raw := `{
		"id": "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		"name": "llm-call",
		"run_type": "llm",
		"start_time": "2024-03-01T10:00:00Z",
		"end_time": "2024-03-01T10:00:02Z",
		"status": "success",
		"inputs": {"prompt": "hello"},
		"outputs": {"text": "hi"},
		"extra": {"invocation_params": {"model_name": "gpt-4"}},
		"prompt_tokens": 10,
		"completion_tokens": 5,
		"total_tokens": 15,
		"total_cost": 0.0012
	}`

	var run Run
	require.NoError(t, json.Unmarshal([]byte(raw), &run))

	assert.Equal(t, "llm-call", run.Name)
	assert.Equal(t, "llm", run.RunType)
	assert.Equal(t, 15, run.TotalTokens)
	assert.Equal(t, 0.0012, run.TotalCost)
	assert.Equal(t, "hello", run.Inputs["prompt"])
}
