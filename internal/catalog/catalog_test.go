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

package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runlens/runlens/pkg/errors"
)

type graphqlHandler struct {
	requests []graphqlRequest
	auth     string
	respond  func(req graphqlRequest) string
}

func (h *graphqlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/graphql" {
		http.NotFound(w, r)
		return
	}
	h.auth = r.Header.Get("Authorization")

	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.requests = append(h.requests, req)

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(h.respond(req)))
}

func testClient(t *testing.T, handler *graphqlHandler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Options{GMSURL: srv.URL, Token: "test-token"}, nil)
	require.NoError(t, err)
	return client
}

func TestNewRequiresGMSURL(t *testing.T) {
	_, err := New(Options{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestSearchRuns(t *testing.T) {
	handler := &graphqlHandler{respond: func(req graphqlRequest) string {
		return `{"data": {"search": {"total": 2, "searchResults": [
			{"entity": {"urn": "urn:li:dataset:(urn:li:dataPlatform:llm,runs/run-1,PROD)", "type": "DATASET", "name": "runs/run-1",
				"properties": {"customProperties": [{"key": "status", "value": "completed"}]},
				"relationships": {"total": 1, "relationships": [
					{"type": "Uses", "entity": {"urn": "urn:li:mlModel:(urn:li:dataPlatform:llm,OpenAI/gpt-4,PROD)", "type": "MLMODEL"}}
				]}}},
			{"entity": {"urn": "urn:li:dataset:(urn:li:dataPlatform:llm,runs/run-2,PROD)", "type": "DATASET", "name": "runs/run-2"}}
		]}}}`
	}}
	client := testClient(t, handler)

	result, err := client.SearchRuns(context.Background(), SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Entities, 2)
	assert.Equal(t, "completed", result.Entities[0].Property("status"))
	assert.Equal(t, "Uses", result.Entities[0].Relationships.Relationships[0].Type)

	require.Len(t, handler.requests, 1)
	assert.Equal(t, "platform:llm", handler.requests[0].Variables["query"])
	assert.Equal(t, "Bearer test-token", handler.auth)
}

func TestGetEntity(t *testing.T) {
	urn := "urn:li:dataset:(urn:li:dataPlatform:llm,runs/run-1,PROD)"
	handler := &graphqlHandler{respond: func(req graphqlRequest) string {
		return `{"data": {"dataset": {"urn": "` + urn + `", "name": "runs/run-1",
			"properties": {"description": "LLM Run: chat"}}}}`
	}}
	client := testClient(t, handler)

	entity, err := client.GetEntity(context.Background(), urn)
	require.NoError(t, err)
	assert.Equal(t, urn, entity.URN)
	assert.Equal(t, "LLM Run: chat", entity.Properties.Description)

	require.Len(t, handler.requests, 1)
	assert.Equal(t, urn, handler.requests[0].Variables["urn"])
}

func TestGetEntityNotFound(t *testing.T) {
	handler := &graphqlHandler{respond: func(req graphqlRequest) string {
		return `{"data": {"dataset": null}}`
	}}
	client := testClient(t, handler)

	_, err := client.GetEntity(context.Background(), "urn:li:dataset:(urn:li:dataPlatform:llm,runs/missing,PROD)")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGraphQLErrors(t *testing.T) {
	handler := &graphqlHandler{respond: func(req graphqlRequest) string {
		return `{"errors": [{"message": "Unauthorized to perform this action"}]}`
	}}
	client := testClient(t, handler)

	_, err := client.SearchRuns(context.Background(), SearchOptions{})
	require.Error(t, err)

	var catErr *errors.CatalogError
	require.ErrorAs(t, err, &catErr)
	assert.Contains(t, catErr.Message, "Unauthorized")
}

func TestFrontendURLGetsGMSPath(t *testing.T) {
	client, err := New(Options{GMSURL: "http://localhost:9002/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9002/api/gms", client.baseURL)
}
