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

// Package observer adapts live LLM framework callbacks into metadata
// emission. An application wires the observer into its callback hooks; each
// completed run is normalized and emitted as it finishes, with model and
// lineage entities emitted alongside. Model entities are deduplicated per
// observer session.
package observer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/runlens/runlens/internal/emit"
	"github.com/runlens/runlens/internal/transform"
	"github.com/runlens/runlens/pkg/metadata"
)

// LLMStart describes an LLM invocation beginning.
type LLMStart struct {
	// RunID identifies the run; generated when empty.
	RunID string

	// ParentID links to an enclosing chain run, when any.
	ParentID string

	// Model is the model identifier when the framework reports one.
	Model string

	// Params holds invocation parameters (temperature, max_tokens, ...).
	Params map[string]any

	// Prompts are the rendered prompts sent to the model.
	Prompts []string
}

// LLMEnd describes a successful LLM invocation finishing.
type LLMEnd struct {
	Generations []string
	Usage       metadata.TokenUsage
	Cost        float64
}

// ChainStart describes a chain invocation beginning.
type ChainStart struct {
	RunID    string
	ParentID string
	Name     string
	Inputs   map[string]any
	Config   map[string]any
}

// activeRun is a run in flight between start and end callbacks.
type activeRun struct {
	run  metadata.Run
	span trace.Span
}

// Observer receives framework callbacks and emits metadata for each run.
// Safe for concurrent use; frameworks fire callbacks from multiple
// goroutines.
type Observer struct {
	emitter emit.Emitter
	logger  *slog.Logger
	tracer  trace.Tracer

	mu         sync.Mutex
	active     map[string]*activeRun
	seenModels map[string]bool
}

// New creates an observer emitting to the given sink.
func New(emitter emit.Emitter, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		emitter:    emitter,
		logger:     logger.With("component", "observer"),
		tracer:     otel.Tracer("runlens/observer"),
		active:     make(map[string]*activeRun),
		seenModels: make(map[string]bool),
	}
}

// OnLLMStart records an LLM run beginning and returns its run ID.
func (o *Observer) OnLLMStart(ctx context.Context, start LLMStart) string {
	runID := start.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	run := metadata.Run{
		ID:        runID,
		RunType:   metadata.RunTypeLLM,
		StartTime: time.Now(),
		Status:    metadata.StatusRunning,
		ParentID:  start.ParentID,
	}
	if len(start.Prompts) > 0 {
		prompts := make([]any, len(start.Prompts))
		for i, p := range start.Prompts {
			prompts[i] = p
		}
		run.Inputs = map[string]any{"prompts": prompts}
	}
	if start.Model != "" {
		run.Model = &metadata.Model{
			Name:         start.Model,
			Provider:     transform.InferProvider(start.Model),
			Family:       transform.InferFamily(start.Model),
			Capabilities: transform.InferCapabilities(start.Model),
			Parameters:   start.Params,
		}
	}

	_, span := o.tracer.Start(ctx, "llm.run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("llm.model", start.Model),
		))

	o.mu.Lock()
	o.active[runID] = &activeRun{run: run, span: span}
	o.mu.Unlock()

	o.logger.Debug("run started", "run_id", runID, "model", start.Model)
	return runID
}

// OnLLMEnd completes an LLM run and emits its metadata.
func (o *Observer) OnLLMEnd(ctx context.Context, runID string, end LLMEnd) error {
	ar := o.takeRun(runID)
	if ar == nil {
		o.logger.Warn("end callback for unknown run", "run_id", runID)
		return nil
	}

	run := ar.run
	run.EndTime = time.Now()
	run.Status = metadata.StatusCompleted
	run.Usage = end.Usage
	run.Cost = end.Cost
	if len(end.Generations) > 0 {
		gens := make([]any, len(end.Generations))
		for i, g := range end.Generations {
			gens[i] = g
		}
		run.Outputs = map[string]any{"generations": gens}
	}

	ar.span.SetAttributes(
		attribute.Int64("llm.usage.total_tokens", run.Usage.TotalTokens),
		attribute.Float64("llm.cost_usd", run.Cost),
	)
	ar.span.SetStatus(codes.Ok, "")
	ar.span.End()

	return o.emitRun(ctx, &run)
}

// OnLLMError completes an LLM run as failed and emits its metadata.
func (o *Observer) OnLLMError(ctx context.Context, runID string, callErr error) error {
	ar := o.takeRun(runID)
	if ar == nil {
		o.logger.Warn("error callback for unknown run", "run_id", runID)
		return nil
	}

	run := ar.run
	run.EndTime = time.Now()
	run.Status = metadata.StatusFailed
	if callErr != nil {
		run.Error = transform.FirstLine(callErr.Error())
	}

	ar.span.RecordError(callErr)
	ar.span.SetStatus(codes.Error, run.Error)
	ar.span.End()

	return o.emitRun(ctx, &run)
}

// OnChainStart records a chain beginning and emits the chain entity.
// Returns the run ID.
func (o *Observer) OnChainStart(ctx context.Context, start ChainStart) (string, error) {
	runID := start.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	name := start.Name
	if name == "" {
		name = "unknown"
	}

	run := metadata.Run{
		ID:        runID,
		Name:      name,
		RunType:   metadata.RunTypeChain,
		StartTime: time.Now(),
		Status:    metadata.StatusRunning,
		ParentID:  start.ParentID,
		Inputs:    start.Inputs,
	}

	_, span := o.tracer.Start(ctx, "chain.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("chain.name", name),
		))

	o.mu.Lock()
	o.active[runID] = &activeRun{run: run, span: span}
	o.mu.Unlock()

	chain := &metadata.Chain{ID: runID, Name: name, Config: start.Config}
	if _, err := o.emitter.EmitChain(ctx, chain); err != nil {
		return runID, err
	}
	return runID, nil
}

// OnChainEnd completes a chain run and emits its metadata.
func (o *Observer) OnChainEnd(ctx context.Context, runID string, outputs map[string]any) error {
	ar := o.takeRun(runID)
	if ar == nil {
		o.logger.Warn("chain end for unknown run", "run_id", runID)
		return nil
	}

	run := ar.run
	run.EndTime = time.Now()
	run.Status = metadata.StatusCompleted
	run.Outputs = outputs

	ar.span.SetStatus(codes.Ok, "")
	ar.span.End()

	return o.emitRun(ctx, &run)
}

// ActiveRuns returns the number of runs between start and end callbacks.
func (o *Observer) ActiveRuns() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

func (o *Observer) takeRun(runID string) *activeRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	ar := o.active[runID]
	delete(o.active, runID)
	return ar
}

// emitRun sends a finished run plus its model and lineage entities.
func (o *Observer) emitRun(ctx context.Context, run *metadata.Run) error {
	runURN, err := o.emitter.EmitRun(ctx, run)
	if err != nil {
		return err
	}

	if run.Model != nil {
		modelURN := metadata.ModelURN(run.Model.Provider, run.Model.Name)
		if o.markModel(modelURN) {
			if _, err := o.emitter.EmitModel(ctx, run.Model); err != nil {
				return err
			}
		}
		if err := o.emitter.EmitLineage(ctx, metadata.LineageEdge{
			SourceURN: runURN,
			TargetURN: modelURN,
			Type:      metadata.LineageUses,
		}); err != nil {
			return err
		}
	}

	if run.ParentID != "" {
		if err := o.emitter.EmitLineage(ctx, metadata.LineageEdge{
			SourceURN: runURN,
			TargetURN: metadata.RunURN(run.ParentID),
			Type:      metadata.LineagePartOf,
		}); err != nil {
			return err
		}
	}

	o.logger.Info("run emitted",
		"run_id", run.ID,
		"run_type", run.RunType,
		"status", run.Status)
	return nil
}

// markModel reports whether the model URN is new to this session.
func (o *Observer) markModel(urn string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seenModels[urn] {
		return false
	}
	o.seenModels[urn] = true
	return true
}
