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

package datahub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runlens/runlens/pkg/errors"
	"github.com/runlens/runlens/pkg/metadata"
)

// ingestRecorder captures ingest requests for assertions.
type ingestRecorder struct {
	mu     sync.Mutex
	bodies []map[string]any
	auth   []string
	status int
}

func (r *ingestRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path == "/health" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	body, _ := io.ReadAll(req.Body)
	var decoded map[string]any
	json.Unmarshal(body, &decoded)
	r.bodies = append(r.bodies, decoded)
	r.auth = append(r.auth, req.Header.Get("Authorization"))

	if r.status != 0 {
		w.WriteHeader(r.status)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (r *ingestRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func testEmitter(t *testing.T, rec *ingestRecorder, batchSize int) *Emitter {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	e, err := New(Config{
		GMSURL:    srv.URL,
		Token:     "test-token",
		JobID:     "job-1",
		BatchSize: batchSize,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestNewRequiresGMSURL(t *testing.T) {
	_, err := New(Config{}, nil)

	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "gms_url", verr.Field)
}

func TestFrontendURLGetsGMSPath(t *testing.T) {
	e, err := New(Config{GMSURL: "http://datahub:9002"}, nil)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "http://datahub:9002/api/gms", e.cfg.GMSURL)
}

func TestEmitRunFlushesFullBatch(t *testing.T) {
	rec := &ingestRecorder{}
	e := testEmitter(t, rec, 2)

	ctx := context.Background()
	_, err := e.EmitRun(ctx, &metadata.Run{ID: "run-1", StartTime: time.Now(), Status: metadata.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.count(), "batch should not flush before it fills")

	_, err = e.EmitRun(ctx, &metadata.Run{ID: "run-2", StartTime: time.Now(), Status: metadata.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.count())

	assert.Equal(t, "Bearer test-token", rec.auth[0])
	entity := rec.bodies[0]["entity"].(map[string]any)
	value := entity["value"].(map[string]any)
	assert.Contains(t, value, metadata.SnapshotDataset)
}

func TestModelDeduplication(t *testing.T) {
	rec := &ingestRecorder{}
	e := testEmitter(t, rec, 10)

	ctx := context.Background()
	model := &metadata.Model{Name: "gpt-4o", Provider: "OpenAI", Family: "GPT-4"}

	urn1, err := e.EmitModel(ctx, model)
	require.NoError(t, err)
	urn2, err := e.EmitModel(ctx, model)
	require.NoError(t, err)
	assert.Equal(t, urn1, urn2)

	require.NoError(t, e.Flush(ctx))
	assert.Equal(t, 1, rec.count(), "duplicate model should be sent once")
}

func TestFlushOnClose(t *testing.T) {
	rec := &ingestRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	e, err := New(Config{GMSURL: srv.URL, JobID: "job-1", BatchSize: 100}, nil)
	require.NoError(t, err)

	_, err = e.EmitRun(context.Background(), &metadata.Run{ID: "run-1", StartTime: time.Now(), Status: metadata.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.count())

	require.NoError(t, e.Close())
	assert.Equal(t, 1, rec.count())
}

func TestFailedFlushRestoresBuffer(t *testing.T) {
	rec := &ingestRecorder{status: http.StatusBadRequest}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	e, err := New(Config{GMSURL: srv.URL, JobID: "job-1", BatchSize: 100}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = e.EmitRun(ctx, &metadata.Run{ID: "run-1", StartTime: time.Now(), Status: metadata.StatusCompleted})
	require.NoError(t, err)

	err = e.Flush(ctx)
	var cerr *errors.CatalogError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, http.StatusBadRequest, cerr.StatusCode)
	assert.Equal(t, metadata.RunURN("run-1"), cerr.URN)

	// Event stays buffered for a later retry.
	rec.mu.Lock()
	rec.status = 0
	rec.mu.Unlock()
	require.NoError(t, e.Flush(ctx))
}

func TestCheckHealth(t *testing.T) {
	rec := &ingestRecorder{}
	e := testEmitter(t, rec, 10)

	assert.NoError(t, e.CheckHealth(context.Background()))
}

func TestCheckHealthUnreachable(t *testing.T) {
	e, err := New(Config{GMSURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)
	require.NoError(t, err)
	defer e.Close()

	err = e.CheckHealth(context.Background())
	var cerr *errors.CatalogError
	assert.ErrorAs(t, err, &cerr)
}

func TestLineageEnvelope(t *testing.T) {
	rec := &ingestRecorder{}
	e := testEmitter(t, rec, 1)

	err := e.EmitLineage(context.Background(), metadata.LineageEdge{
		SourceURN: metadata.RunURN("run-1"),
		TargetURN: metadata.ModelURN("OpenAI", "gpt-4o"),
		Type:      metadata.LineageUses,
	})
	require.NoError(t, err)
	require.Equal(t, 1, rec.count())

	entity := rec.bodies[0]["entity"].(map[string]any)
	value := entity["value"].(map[string]any)
	snapshot := value[metadata.SnapshotDataset].(map[string]any)
	aspects := snapshot["aspects"].([]any)
	aspect := aspects[0].(map[string]any)
	lineage := aspect[metadata.AspectUpstreamLineage].(map[string]any)
	upstreams := lineage["upstreams"].([]any)
	first := upstreams[0].(map[string]any)
	assert.Equal(t, metadata.ModelURN("OpenAI", "gpt-4o"), first["dataset"])
	assert.Equal(t, "Uses", first["type"])
}
