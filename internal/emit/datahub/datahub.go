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

// Package datahub implements the live metadata sink: change events are
// batched and POSTed to the DataHub metadata service ingest endpoint.
// Ingestion is an upsert per URN, so retried or replayed batches are safe.
package datahub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/runlens/runlens/internal/emit"
	"github.com/runlens/runlens/pkg/errors"
	"github.com/runlens/runlens/pkg/httpclient"
	"github.com/runlens/runlens/pkg/metadata"
)

const (
	// ingestPath is the REST ingestion action on the metadata service.
	ingestPath = "/entities?action=ingest"

	defaultTimeout   = 30 * time.Second
	defaultBatchSize = 100
)

// Config configures the DataHub emitter.
type Config struct {
	// GMSURL is the metadata service base URL.
	GMSURL string

	// Token is the personal access token; sent as a bearer header.
	Token string

	// JobID identifies this ingestion job in system metadata.
	JobID string

	// BatchSize is the number of buffered events that triggers a flush.
	BatchSize int

	// FlushInterval flushes partial batches on a timer. Zero disables
	// timed flushing.
	FlushInterval time.Duration

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// Emitter sends change events to a DataHub metadata service.
type Emitter struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	buffer  []metadata.ChangeEvent
	emitted map[string]bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

var _ emit.Emitter = (*Emitter)(nil)

// New creates a DataHub emitter.
func New(cfg Config, logger *slog.Logger) (*Emitter, error) {
	if cfg.GMSURL == "" {
		return nil, &errors.ValidationError{
			Field:      "gms_url",
			Message:    "metadata service URL is required",
			Suggestion: "set DATAHUB_GMS_URL",
		}
	}
	cfg.GMSURL = strings.TrimRight(cfg.GMSURL, "/")
	// The frontend proxies the metadata service under /api/gms.
	if strings.Contains(cfg.GMSURL, ":9002") && !strings.HasSuffix(cfg.GMSURL, "/api/gms") {
		cfg.GMSURL += "/api/gms"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.Timeout
	httpCfg.UserAgent = "runlens-datahub/1.0"
	// Ingestion is an upsert; POSTs are safe to retry.
	httpCfg.AllowNonIdempotentRetry = true

	httpClient, err := httpclient.New(httpCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	e := &Emitter{
		cfg:     cfg,
		http:    httpClient,
		logger:  logger.With("component", "datahub"),
		emitted: make(map[string]bool),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if cfg.FlushInterval > 0 {
		go e.flushLoop()
	} else {
		close(e.done)
	}

	return e, nil
}

// CheckHealth verifies the metadata service is reachable.
func (e *Emitter) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.GMSURL+"/health", nil)
	if err != nil {
		return err
	}
	e.setHeaders(req)

	resp, err := e.http.Do(req)
	if err != nil {
		return &errors.CatalogError{
			Endpoint: e.cfg.GMSURL,
			Message:  "metadata service unreachable",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &errors.CatalogError{
			Endpoint:   e.cfg.GMSURL,
			StatusCode: resp.StatusCode,
			Message:    "metadata service health check failed",
		}
	}
	return nil
}

// EmitRun implements emit.Emitter.
func (e *Emitter) EmitRun(ctx context.Context, run *metadata.Run) (string, error) {
	event := emit.RunEvent(run, e.cfg.JobID, time.Now())
	return event.Snapshot.URN, e.enqueue(ctx, event, false)
}

// EmitModel implements emit.Emitter. Models repeat across runs; each URN is
// sent at most once per emitter lifetime.
func (e *Emitter) EmitModel(ctx context.Context, model *metadata.Model) (string, error) {
	event := emit.ModelEvent(model, e.cfg.JobID, time.Now())
	return event.Snapshot.URN, e.enqueue(ctx, event, true)
}

// EmitChain implements emit.Emitter.
func (e *Emitter) EmitChain(ctx context.Context, chain *metadata.Chain) (string, error) {
	event := emit.ChainEvent(chain, e.cfg.JobID, time.Now())
	return event.Snapshot.URN, e.enqueue(ctx, event, false)
}

// EmitLineage implements emit.Emitter.
func (e *Emitter) EmitLineage(ctx context.Context, edge metadata.LineageEdge) error {
	event := metadata.LineageEvent(edge.SourceURN, edge.TargetURN, edge.Type, time.Now())
	return e.enqueue(ctx, event, false)
}

// EmitEvent enqueues a pre-built change event, used for platform and type
// registration.
func (e *Emitter) EmitEvent(ctx context.Context, event metadata.ChangeEvent) error {
	return e.enqueue(ctx, event, false)
}

// enqueue buffers an event, flushing when the batch fills.
func (e *Emitter) enqueue(ctx context.Context, event metadata.ChangeEvent, dedupe bool) error {
	e.mu.Lock()
	if dedupe {
		if e.emitted[event.Snapshot.URN] {
			e.mu.Unlock()
			return nil
		}
		e.emitted[event.Snapshot.URN] = true
	}
	e.buffer = append(e.buffer, event)
	full := len(e.buffer) >= e.cfg.BatchSize
	e.mu.Unlock()

	if full {
		return e.Flush(ctx)
	}
	return nil
}

// Flush sends all buffered events. On a send failure the unsent remainder is
// restored to the buffer so a later flush can retry it.
func (e *Emitter) Flush(ctx context.Context) error {
	e.mu.Lock()
	batch := e.buffer
	e.buffer = nil
	e.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	for i, event := range batch {
		if err := e.send(ctx, event); err != nil {
			e.mu.Lock()
			e.buffer = append(batch[i:], e.buffer...)
			e.mu.Unlock()
			return err
		}
	}

	e.logger.Info("flushed batch",
		"events", len(batch),
		"duration", time.Since(start))
	return nil
}

// Close flushes remaining events and stops the timed flusher.
func (e *Emitter) Close() error {
	e.stopOnce.Do(func() { close(e.stop) })
	<-e.done
	return e.Flush(context.Background())
}

func (e *Emitter) flushLoop() {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.Flush(context.Background()); err != nil {
				e.logger.Warn("timed flush failed", "error", err)
			}
		case <-e.stop:
			return
		}
	}
}

// send POSTs a single change event to the ingest endpoint.
func (e *Emitter) send(ctx context.Context, event metadata.ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding change event for %s: %w", event.Snapshot.URN, err)
	}

	endpoint := e.cfg.GMSURL + ingestPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	e.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return &errors.CatalogError{
			Endpoint: endpoint,
			URN:      event.Snapshot.URN,
			Message:  "ingest request failed",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &errors.CatalogError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			URN:        event.Snapshot.URN,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	e.logger.Debug("ingested entity", "urn", event.Snapshot.URN)
	return nil
}

func (e *Emitter) setHeaders(req *http.Request) {
	if e.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.Token)
	}
	req.Header.Set("Accept", "application/json")
}
