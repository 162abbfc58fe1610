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

// Package pipeline orchestrates one ingestion job: fetch runs from a
// source, filter and transform them, and emit the resulting metadata with
// lineage. Follow mode repeats the cycle on an interval, advancing a
// persisted watermark so each cycle only fetches new runs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/runlens/runlens/internal/collect"
	"github.com/runlens/runlens/internal/config"
	"github.com/runlens/runlens/internal/emit"
	"github.com/runlens/runlens/internal/filter"
	"github.com/runlens/runlens/internal/langsmith"
	"github.com/runlens/runlens/internal/state"
	"github.com/runlens/runlens/internal/telemetry"
	"github.com/runlens/runlens/internal/transform"
	"github.com/runlens/runlens/pkg/metadata"
)

// Source provides runs to ingest. Both the live LangSmith client and the
// file source satisfy it.
type Source interface {
	ListRuns(ctx context.Context, opts langsmith.ListOptions) ([]langsmith.Run, error)
}

// Options wires a Pipeline.
type Options struct {
	Config  *config.Config
	Source  Source
	Emitter emit.Emitter
	Store   *state.Store

	// Metrics is optional; nil disables instrumentation.
	Metrics *telemetry.Metrics

	// JobID tags emitted system metadata; defaults to a timestamped id.
	JobID string

	Logger *slog.Logger
}

// Pipeline runs ingestion cycles.
type Pipeline struct {
	cfg     *config.Config
	source  Source
	emitter emit.Emitter
	store   *state.Store
	metrics *telemetry.Metrics
	filter  *filter.Filter
	xform   *transform.Transformer
	jobID   string
	logger  *slog.Logger
}

// Summary reports what one cycle did.
type Summary struct {
	Fetched int `json:"fetched"`
	Emitted int `json:"emitted"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	// Window is the time range the cycle fetched.
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	// RunStats and ModelStats summarize the emitted runs.
	RunStats   collect.RunStats   `json:"run_stats"`
	ModelStats collect.ModelStats `json:"model_stats"`

	// LineageEdges is the number of distinct lineage edges emitted.
	LineageEdges int `json:"lineage_edges"`
}

// New creates a Pipeline. The run filter is compiled once here so an
// invalid expression fails before any fetching happens.
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if opts.Emitter == nil {
		return nil, fmt.Errorf("emitter is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline")

	jobID := opts.JobID
	if jobID == "" {
		jobID = fmt.Sprintf("runlens-%d", time.Now().Unix())
	}

	runFilter, err := filter.New(opts.Config.Ingest.Filter)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:     opts.Config,
		source:  opts.Source,
		emitter: opts.Emitter,
		store:   opts.Store,
		metrics: opts.Metrics,
		filter:  runFilter,
		xform:   transform.New(logger),
		jobID:   jobID,
		logger:  logger,
	}, nil
}

// JobID returns the id stamped into emitted system metadata.
func (p *Pipeline) JobID() string { return p.jobID }

// Run executes one ingestion cycle and flushes the emitter.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	project := p.cfg.LangSmith.Project

	window, err := p.window(ctx, project)
	if err != nil {
		return nil, err
	}

	runs, err := p.source.ListRuns(ctx, langsmith.ListOptions{
		StartTime: window.start,
		EndTime:   window.end,
		Limit:     p.cfg.Ingest.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}
	p.logger.Info("fetched runs", "count", len(runs), "window_start", window.start, "window_end", window.end)
	if p.metrics != nil {
		p.metrics.RecordFetched(ctx, project, len(runs))
	}

	summary := &Summary{
		Fetched:     len(runs),
		WindowStart: window.start,
		WindowEnd:   window.end,
	}

	byID := make(map[string]langsmith.Run, len(runs))
	for _, run := range runs {
		byID[run.ID] = run
	}
	childrenOf := make(map[string][]langsmith.Run)
	for _, run := range runs {
		if run.ParentRunID != "" {
			childrenOf[run.ParentRunID] = append(childrenOf[run.ParentRunID], run)
		}
	}

	lineage := metadata.NewLineageTracker()

	var latest time.Time
	var emittedRuns []metadata.Run
	for _, src := range runs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if src.ID == "" {
			summary.Skipped++
			continue
		}

		run, emitted, err := p.ingestRun(ctx, src, childrenOf[src.ID], lineage, summary)
		if err != nil {
			summary.Failed++
			if p.metrics != nil {
				p.metrics.RecordFailed(ctx, project)
			}
			p.logger.Error("failed to ingest run", "run_id", src.ID, "error", err)
			continue
		}
		if !emitted {
			continue
		}
		emittedRuns = append(emittedRuns, run)
		if src.StartTime.After(latest) {
			latest = src.StartTime
		}
	}
	summary.RunStats = collect.Stats(emittedRuns)
	summary.ModelStats = collect.StatsForModels(collect.Models(emittedRuns))
	summary.LineageEdges = len(lineage.Edges())

	if err := p.emitter.Flush(ctx); err != nil {
		return summary, fmt.Errorf("failed to flush emitter: %w", err)
	}

	if p.store != nil && !latest.IsZero() {
		if err := p.store.SetWatermark(ctx, project, latest); err != nil {
			p.logger.Warn("failed to advance watermark", "error", err)
		}
	}

	if p.metrics != nil {
		p.metrics.RecordCycle(ctx, project, time.Since(started))
	}
	p.logger.Info("cycle complete",
		"fetched", summary.Fetched,
		"emitted", summary.Emitted,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", time.Since(started))
	return summary, nil
}

// ingestRun emits one run with its model, chain, and lineage. Returns the
// transformed run and whether it was emitted (filtered and already-seen
// runs are not).
func (p *Pipeline) ingestRun(ctx context.Context, src langsmith.Run, children []langsmith.Run, lineage *metadata.LineageTracker, summary *Summary) (metadata.Run, bool, error) {
	project := p.cfg.LangSmith.Project

	run := p.xform.Run(src)

	match, err := p.filter.Match(ctx, &run)
	if err != nil {
		return run, false, err
	}
	if !match {
		summary.Skipped++
		if p.metrics != nil {
			p.metrics.RecordSkipped(ctx, project, "filtered")
		}
		return run, false, nil
	}

	runURN := metadata.RunURN(run.ID)
	if p.store != nil {
		seen, err := p.store.IsEmitted(ctx, runURN)
		if err != nil {
			return run, false, err
		}
		if seen {
			summary.Skipped++
			if p.metrics != nil {
				p.metrics.RecordSkipped(ctx, project, "already_emitted")
			}
			return run, false, nil
		}
	}

	urns := make([]string, 0, 3)

	urn, err := p.emitter.EmitRun(ctx, &run)
	if err != nil {
		return run, false, err
	}
	urns = append(urns, urn)

	if run.Model != nil {
		modelURN, err := p.emitter.EmitModel(ctx, run.Model)
		if err != nil {
			return run, false, err
		}
		if err := p.emitEdge(ctx, lineage, urn, modelURN, metadata.LineageUses); err != nil {
			return run, false, err
		}
		urns = append(urns, modelURN)
	}

	if chain := p.xform.Chain(src, children); chain != nil {
		chainURN, err := p.emitter.EmitChain(ctx, chain)
		if err != nil {
			return run, false, err
		}
		urns = append(urns, chainURN)
	}

	if run.ParentID != "" {
		if err := p.emitEdge(ctx, lineage, urn, metadata.RunURN(run.ParentID), metadata.LineagePartOf); err != nil {
			return run, false, err
		}
	}

	if p.store != nil {
		if err := p.store.MarkEmitted(ctx, p.jobID, urns...); err != nil {
			p.logger.Warn("failed to record emitted urns", "error", err)
		}
	}

	summary.Emitted++
	if p.metrics != nil {
		p.metrics.RecordEmitted(ctx, project, run.Usage.TotalTokens)
	}
	return run, true, nil
}

// emitEdge emits one lineage edge and records it in the cycle tracker.
// An edge already recorded this cycle is not re-emitted.
func (p *Pipeline) emitEdge(ctx context.Context, lineage *metadata.LineageTracker, sourceURN, targetURN, edgeType string) error {
	for _, edge := range lineage.Downstream(sourceURN) {
		if edge.TargetURN == targetURN && edge.Type == edgeType {
			return nil
		}
	}
	if err := p.emitter.EmitLineage(ctx, metadata.LineageEdge{
		SourceURN: sourceURN,
		TargetURN: targetURN,
		Type:      edgeType,
	}); err != nil {
		return err
	}
	lineage.Add(sourceURN, targetURN, edgeType)
	return nil
}

type timeWindow struct {
	start, end time.Time
}

// window computes the fetch range: from the persisted watermark when one
// exists, otherwise WindowDays back from now.
func (p *Pipeline) window(ctx context.Context, project string) (timeWindow, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -p.cfg.Ingest.WindowDays)

	if p.store != nil {
		mark, err := p.store.Watermark(ctx, project)
		if err != nil {
			return timeWindow{}, fmt.Errorf("failed to read watermark: %w", err)
		}
		if !mark.IsZero() && mark.After(start) {
			// Nudge past the watermark so the newest ingested run is
			// not refetched.
			start = mark.Add(time.Millisecond)
		}
	}
	return timeWindow{start: start, end: end}, nil
}
