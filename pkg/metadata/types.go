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

// Package metadata defines the catalog-facing domain model: normalized LLM
// run/model/chain records, entity URNs, and the versioned aspect envelopes
// the catalog ingestion API accepts.
package metadata

import (
	"time"
)

// Run statuses after normalization.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRunning   = "running"
)

// Run types recognized by the transformer.
const (
	RunTypeLLM   = "llm"
	RunTypeChain = "chain"
	RunTypeTool  = "tool"
)

// TokenUsage holds normalized token counts for a single run.
// A zero value means the source did not report usage.
type TokenUsage struct {
	PromptTokens     int64 `json:"promptTokens,omitempty"`
	CompletionTokens int64 `json:"completionTokens,omitempty"`
	TotalTokens      int64 `json:"totalTokens,omitempty"`
}

// IsZero reports whether no usage was recorded.
func (u TokenUsage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// Model describes an LLM model discovered from run metadata or live callbacks.
type Model struct {
	// Name is the model identifier as reported by the provider (e.g., "gpt-4o").
	Name string `json:"name"`

	// Provider is the inferred vendor (e.g., "OpenAI", "Anthropic").
	Provider string `json:"provider"`

	// Family groups related models (e.g., "GPT-4", "Claude").
	Family string `json:"family"`

	// Capabilities lists inferred abilities (text-generation, chat, streaming, ...).
	Capabilities []string `json:"capabilities,omitempty"`

	// Parameters holds invocation parameters (temperature, max_tokens, ...).
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Run is a single recorded LLM/chain/tool execution, normalized from a
// heterogeneous source record into the fixed shape the catalog schema expects.
type Run struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	RunType   string         `json:"runType,omitempty"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime,omitzero"`
	Status    string         `json:"status"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	Outputs   map[string]any `json:"outputs,omitempty"`

	// Error holds the first line of the source error, if any.
	Error string `json:"error,omitempty"`

	// ParentID links to the enclosing run; empty for top-level runs.
	ParentID string   `json:"parentId,omitempty"`
	ChildIDs []string `json:"childIds,omitempty"`

	Tags  []string   `json:"tags,omitempty"`
	Usage TokenUsage `json:"tokenUsage,omitzero"`

	// Latency is the wall-clock duration of the run.
	Latency time.Duration `json:"latency,omitempty"`

	// Cost is the estimated cost in USD, when the source reports one.
	Cost float64 `json:"cost,omitempty"`

	// Feedback holds aggregated feedback statistics from the source platform.
	Feedback map[string]any `json:"feedback,omitempty"`

	// Model is the model the run executed on, when it can be determined.
	Model *Model `json:"model,omitempty"`

	// Extra preserves source fields that have no normalized home.
	Extra map[string]any `json:"extra,omitempty"`
}

// Succeeded reports whether the run finished without an error.
func (r *Run) Succeeded() bool {
	return r.Error == "" && r.Status != StatusFailed
}

// Duration returns the run latency, computing it from timestamps when the
// source did not report one.
func (r *Run) Duration() time.Duration {
	if r.Latency > 0 {
		return r.Latency
	}
	if !r.EndTime.IsZero() && r.EndTime.After(r.StartTime) {
		return r.EndTime.Sub(r.StartTime)
	}
	return 0
}

// Chain describes an LLM chain/pipeline discovered from a chain-typed run.
type Chain struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Components []string       `json:"components,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
}
