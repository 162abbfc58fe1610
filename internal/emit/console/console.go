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

// Package console implements the dry-run metadata sink: change events are
// pretty-printed instead of sent anywhere, so operators can inspect exactly
// what a live run would ingest.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/runlens/runlens/internal/emit"
	"github.com/runlens/runlens/pkg/metadata"
)

// Emitter prints change events to a writer.
type Emitter struct {
	mu     sync.Mutex
	out    io.Writer
	jobID  string
	pretty bool

	// emitted counts events for the closing summary.
	emitted int
}

// New creates a console emitter writing to out.
func New(out io.Writer, jobID string) *Emitter {
	return &Emitter{out: out, jobID: jobID, pretty: true}
}

// EmitRun implements emit.Emitter.
func (e *Emitter) EmitRun(_ context.Context, run *metadata.Run) (string, error) {
	event := emit.RunEvent(run, e.jobID, time.Now())
	return event.Snapshot.URN, e.print("Run Metadata", event)
}

// EmitModel implements emit.Emitter.
func (e *Emitter) EmitModel(_ context.Context, model *metadata.Model) (string, error) {
	event := emit.ModelEvent(model, e.jobID, time.Now())
	return event.Snapshot.URN, e.print("Model Metadata", event)
}

// EmitChain implements emit.Emitter.
func (e *Emitter) EmitChain(_ context.Context, chain *metadata.Chain) (string, error) {
	event := emit.ChainEvent(chain, e.jobID, time.Now())
	return event.Snapshot.URN, e.print("Chain Metadata", event)
}

// EmitLineage implements emit.Emitter.
func (e *Emitter) EmitLineage(_ context.Context, edge metadata.LineageEdge) error {
	event := metadata.LineageEvent(edge.SourceURN, edge.TargetURN, edge.Type, time.Now())
	return e.print("Lineage", event)
}

// EmitEvent prints a pre-built change event.
func (e *Emitter) EmitEvent(_ context.Context, event metadata.ChangeEvent) error {
	return e.print("Change Event", event)
}

// Flush implements emit.Emitter. Console output is unbuffered.
func (e *Emitter) Flush(context.Context) error { return nil }

// Close prints the event count.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := fmt.Fprintf(e.out, "\nDRY RUN complete: %d events printed, nothing sent\n", e.emitted)
	return err
}

func (e *Emitter) print(header string, event metadata.ChangeEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", header, err)
	}

	if _, err := fmt.Fprintf(e.out, "\n=== %s ===\n%s\n", header, data); err != nil {
		return err
	}
	e.emitted++
	return nil
}
