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

// Package file implements a metadata sink that writes one JSON change-event
// file per entity. Useful for offline inspection and for replaying an
// ingestion job against a catalog later.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/runlens/runlens/internal/emit"
	"github.com/runlens/runlens/pkg/metadata"
)

// Emitter writes each change event to <dir>/<kind>_<id>.json.
type Emitter struct {
	dir   string
	jobID string

	mu      sync.Mutex
	lineage []metadata.ChangeEvent
}

// New creates a file emitter, creating dir if needed.
func New(dir, jobID string) (*Emitter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	return &Emitter{dir: dir, jobID: jobID}, nil
}

// EmitRun implements emit.Emitter.
func (e *Emitter) EmitRun(_ context.Context, run *metadata.Run) (string, error) {
	event := emit.RunEvent(run, e.jobID, time.Now())
	return event.Snapshot.URN, e.write("run_"+safeName(run.ID), event)
}

// EmitModel implements emit.Emitter.
func (e *Emitter) EmitModel(_ context.Context, model *metadata.Model) (string, error) {
	event := emit.ModelEvent(model, e.jobID, time.Now())
	return event.Snapshot.URN, e.write("model_"+safeName(model.Provider+"_"+model.Name), event)
}

// EmitChain implements emit.Emitter.
func (e *Emitter) EmitChain(_ context.Context, chain *metadata.Chain) (string, error) {
	event := emit.ChainEvent(chain, e.jobID, time.Now())
	return event.Snapshot.URN, e.write("chain_"+safeName(chain.ID), event)
}

// EmitLineage buffers lineage edges; they land in a single lineage.json on
// flush so the edge list reads as one document.
func (e *Emitter) EmitLineage(_ context.Context, edge metadata.LineageEdge) error {
	event := metadata.LineageEvent(edge.SourceURN, edge.TargetURN, edge.Type, time.Now())

	e.mu.Lock()
	e.lineage = append(e.lineage, event)
	e.mu.Unlock()
	return nil
}

// Flush writes buffered lineage events.
func (e *Emitter) Flush(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.lineage) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(e.lineage, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding lineage events: %w", err)
	}
	return os.WriteFile(filepath.Join(e.dir, "lineage.json"), data, 0644)
}

// Close flushes buffered events.
func (e *Emitter) Close() error {
	return e.Flush(context.Background())
}

func (e *Emitter) write(name string, event metadata.ChangeEvent) error {
	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding event for %s: %w", name, err)
	}

	path := filepath.Join(e.dir, name+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// safeName makes an entity ID usable as a filename.
func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return r
	}, s)
}
