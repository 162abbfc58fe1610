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

// Package transform normalizes source platform run records into the catalog
// domain model. The transformation is total: any run with an ID produces a
// valid record, and unrecognized fields are preserved rather than dropped.
package transform

import (
	"log/slog"
	"strings"

	"github.com/runlens/runlens/internal/langsmith"
	"github.com/runlens/runlens/pkg/metadata"
)

// Transformer converts source runs into catalog records.
type Transformer struct {
	logger *slog.Logger
}

// New creates a Transformer.
func New(logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{logger: logger.With("component", "transform")}
}

// Run normalizes a single source run.
func (t *Transformer) Run(src langsmith.Run) metadata.Run {
	run := metadata.Run{
		ID:        src.ID,
		Name:      src.Name,
		RunType:   normalizeRunType(src.RunType),
		StartTime: src.StartTime,
		EndTime:   src.EndTime,
		Status:    normalizeStatus(src.Status, src.Error),
		Inputs:    src.Inputs,
		Outputs:   src.Outputs,
		Error:     FirstLine(src.Error),
		ParentID:  src.ParentRunID,
		ChildIDs:  src.ChildRunIDs,
		Tags:      src.Tags,
		Usage:     extractTokenUsage(src),
		Cost:      src.TotalCost,
		Feedback:  src.FeedbackStats,
	}

	if !src.EndTime.IsZero() && src.EndTime.After(src.StartTime) {
		run.Latency = src.EndTime.Sub(src.StartTime)
	}

	if model := t.Model(src); model != nil {
		run.Model = model
	}

	if len(src.Extra) > 0 {
		run.Extra = src.Extra
	}

	return run
}

// Runs normalizes a batch, skipping records without an ID.
func (t *Transformer) Runs(srcs []langsmith.Run) []metadata.Run {
	runs := make([]metadata.Run, 0, len(srcs))
	for _, src := range srcs {
		if src.ID == "" {
			t.logger.Warn("skipping run without id", "name", src.Name)
			continue
		}
		runs = append(runs, t.Run(src))
	}
	return runs
}

// Model extracts the model a run executed on, when the source recorded one.
// Returns nil for runs with no model information.
func (t *Transformer) Model(src langsmith.Run) *metadata.Model {
	name := modelName(src)
	if name == "" {
		return nil
	}

	return &metadata.Model{
		Name:         name,
		Provider:     InferProvider(name),
		Family:       InferFamily(name),
		Capabilities: InferCapabilities(name),
		Parameters:   invocationParams(src),
	}
}

// Chain derives a chain record from a chain-typed run. Components are the
// run types of its children when present, else inferred from the serialized
// definition.
func (t *Transformer) Chain(src langsmith.Run, children []langsmith.Run) *metadata.Chain {
	if normalizeRunType(src.RunType) != metadata.RunTypeChain {
		return nil
	}

	var components []string
	for _, child := range children {
		if child.ParentRunID == src.ID {
			components = append(components, normalizeRunType(child.RunType))
		}
	}

	config := map[string]any{
		"run_type": src.RunType,
	}
	if len(src.Serialized) > 0 {
		config["serialized"] = src.Serialized
	}

	name := src.Name
	if name == "" {
		name = "unknown"
	}

	return &metadata.Chain{
		ID:         src.ID,
		Name:       name,
		Components: components,
		Config:     config,
	}
}

// FirstLine trims an error message to its first line. Source platforms store
// full tracebacks; only the headline belongs in catalog properties.
func FirstLine(s string) string {
	if s == "" {
		return ""
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func normalizeStatus(status, errMsg string) string {
	switch strings.ToLower(status) {
	case "success", "completed":
		return metadata.StatusCompleted
	case "error", "failed":
		return metadata.StatusFailed
	case "pending", "running":
		return metadata.StatusRunning
	}
	if errMsg != "" {
		return metadata.StatusFailed
	}
	return metadata.StatusCompleted
}

func normalizeRunType(runType string) string {
	switch strings.ToLower(runType) {
	case "llm", "chat_model":
		return metadata.RunTypeLLM
	case "chain":
		return metadata.RunTypeChain
	case "tool":
		return metadata.RunTypeTool
	default:
		if runType == "" {
			return metadata.RunTypeLLM
		}
		return strings.ToLower(runType)
	}
}

// modelName finds the model identifier, checking the invocation parameters,
// the platform's own metadata keys, then the serialized definition.
func modelName(src langsmith.Run) string {
	if params := invocationParams(src); params != nil {
		for _, key := range []string{"model_name", "model"} {
			if name, ok := params[key].(string); ok && name != "" {
				return name
			}
		}
	}

	if meta, ok := src.Extra["metadata"].(map[string]any); ok {
		if name, ok := meta["ls_model_name"].(string); ok && name != "" {
			return name
		}
	}

	if kwargs, ok := src.Serialized["kwargs"].(map[string]any); ok {
		for _, key := range []string{"model_name", "model"} {
			if name, ok := kwargs[key].(string); ok && name != "" {
				return name
			}
		}
	}

	return ""
}

func invocationParams(src langsmith.Run) map[string]any {
	params, _ := src.Extra["invocation_params"].(map[string]any)
	return params
}

// extractTokenUsage pulls token counts from any of the places source
// platforms record them: top-level run fields, the LLM output payload, or
// the extra metadata blob.
func extractTokenUsage(src langsmith.Run) metadata.TokenUsage {
	if src.TotalTokens > 0 || src.PromptTokens > 0 || src.CompletionTokens > 0 {
		return metadata.TokenUsage{
			PromptTokens:     int64(src.PromptTokens),
			CompletionTokens: int64(src.CompletionTokens),
			TotalTokens:      int64(src.TotalTokens),
		}
	}

	if out, ok := src.Outputs["llm_output"].(map[string]any); ok {
		if usage := usageFromMap(out["token_usage"]); !usage.IsZero() {
			return usage
		}
	}

	if usage := usageFromMap(src.Extra["token_usage"]); !usage.IsZero() {
		return usage
	}

	return metadata.TokenUsage{}
}

func usageFromMap(v any) metadata.TokenUsage {
	m, ok := v.(map[string]any)
	if !ok {
		return metadata.TokenUsage{}
	}
	return metadata.TokenUsage{
		PromptTokens:     intField(m, "prompt_tokens"),
		CompletionTokens: intField(m, "completion_tokens"),
		TotalTokens:      intField(m, "total_tokens"),
	}
}

// intField reads a numeric map entry. JSON decoding yields float64; hand-built
// maps may carry int.
func intField(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
