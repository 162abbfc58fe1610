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

package metadata

import "sync"

// Lineage edge types.
const (
	LineageUses   = "Uses"   // run -> model
	LineagePartOf = "PartOf" // child run -> parent run
)

// LineageEdge is a directed relationship between two catalog entities.
type LineageEdge struct {
	SourceURN string
	TargetURN string
	Type      string
}

// LineageTracker accumulates lineage edges during an ingestion job and
// answers upstream/downstream queries. Safe for concurrent use.
type LineageTracker struct {
	mu         sync.RWMutex
	edges      []LineageEdge
	downstream map[string][]LineageEdge
	upstream   map[string][]LineageEdge
}

// NewLineageTracker creates an empty tracker.
func NewLineageTracker() *LineageTracker {
	return &LineageTracker{
		downstream: make(map[string][]LineageEdge),
		upstream:   make(map[string][]LineageEdge),
	}
}

// Add records an edge from source to target.
func (t *LineageTracker) Add(sourceURN, targetURN, edgeType string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	edge := LineageEdge{SourceURN: sourceURN, TargetURN: targetURN, Type: edgeType}
	t.edges = append(t.edges, edge)
	t.downstream[sourceURN] = append(t.downstream[sourceURN], edge)
	t.upstream[targetURN] = append(t.upstream[targetURN], edge)
}

// Upstream returns edges pointing at the given entity.
func (t *LineageTracker) Upstream(urn string) []LineageEdge {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]LineageEdge(nil), t.upstream[urn]...)
}

// Downstream returns edges originating at the given entity.
func (t *LineageTracker) Downstream(urn string) []LineageEdge {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]LineageEdge(nil), t.downstream[urn]...)
}

// Edges returns all recorded edges in insertion order.
func (t *LineageTracker) Edges() []LineageEdge {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]LineageEdge(nil), t.edges...)
}
