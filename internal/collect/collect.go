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

// Package collect aggregates runs and models across one or more sources and
// computes summary statistics over them. A failing source is logged and
// skipped so a multi-source collection still returns what it can.
package collect

import (
	"context"
	"log/slog"
	"time"

	"github.com/runlens/runlens/pkg/metadata"
)

// Source provides runs from one upstream platform.
type Source interface {
	// Name identifies the source in logs and stats.
	Name() string

	// Runs returns runs within the window; a zero bound means unbounded.
	Runs(ctx context.Context, start, end time.Time, limit int) ([]metadata.Run, error)
}

// Collector gathers runs from every configured source.
type Collector struct {
	sources []Source
	logger  *slog.Logger
}

// New creates a Collector over the given sources.
func New(sources []Source, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{sources: sources, logger: logger.With("component", "collect")}
}

// Runs collects runs from all sources within the window. Per-source failures
// are logged, not returned; the caller gets whatever was collected.
func (c *Collector) Runs(ctx context.Context, start, end time.Time, limit int) []metadata.Run {
	var runs []metadata.Run
	for _, src := range c.sources {
		collected, err := src.Runs(ctx, start, end, limit)
		if err != nil {
			c.logger.Error("failed to collect runs", "source", src.Name(), "error", err)
			continue
		}
		runs = append(runs, collected...)
	}
	return runs
}

// RunStats summarizes a collected run set.
type RunStats struct {
	TotalRuns int `json:"total_runs"`

	// SuccessRate is the completed fraction, in [0, 1].
	SuccessRate float64 `json:"success_rate"`

	// AverageLatency averages over runs that report a duration.
	AverageLatency time.Duration `json:"average_latency"`

	// TotalCost is the summed estimated cost in USD.
	TotalCost float64 `json:"total_cost"`

	// TotalTokens is the summed token usage.
	TotalTokens int64 `json:"total_tokens"`

	// ErrorDistribution counts failed runs by their first error line.
	ErrorDistribution map[string]int `json:"error_distribution,omitempty"`
}

// Stats computes summary statistics over a run set.
func Stats(runs []metadata.Run) RunStats {
	stats := RunStats{TotalRuns: len(runs)}
	if len(runs) == 0 {
		return stats
	}

	var succeeded, timed int
	var totalLatency time.Duration
	for i := range runs {
		run := &runs[i]
		if run.Succeeded() {
			succeeded++
		}
		if d := run.Duration(); d > 0 {
			totalLatency += d
			timed++
		}
		stats.TotalCost += run.Cost
		stats.TotalTokens += run.Usage.TotalTokens
		if run.Error != "" {
			if stats.ErrorDistribution == nil {
				stats.ErrorDistribution = make(map[string]int)
			}
			stats.ErrorDistribution[run.Error]++
		}
	}

	stats.SuccessRate = float64(succeeded) / float64(len(runs))
	if timed > 0 {
		stats.AverageLatency = totalLatency / time.Duration(timed)
	}
	return stats
}

// ModelStats summarizes the models referenced by a run set.
type ModelStats struct {
	TotalModels int `json:"total_models"`

	// ByProvider counts distinct models per provider.
	ByProvider map[string]int `json:"by_provider,omitempty"`

	// ByCapability counts distinct models per capability.
	ByCapability map[string]int `json:"by_capability,omitempty"`
}

// Models extracts the distinct models referenced by a run set, keyed by
// provider/name.
func Models(runs []metadata.Run) []metadata.Model {
	seen := make(map[string]bool)
	var models []metadata.Model
	for i := range runs {
		model := runs[i].Model
		if model == nil || model.Name == "" {
			continue
		}
		key := model.Provider + "/" + model.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		models = append(models, *model)
	}
	return models
}

// StatsForModels computes summary statistics over a model set.
func StatsForModels(models []metadata.Model) ModelStats {
	stats := ModelStats{TotalModels: len(models)}
	for i := range models {
		model := &models[i]
		if model.Provider != "" {
			if stats.ByProvider == nil {
				stats.ByProvider = make(map[string]int)
			}
			stats.ByProvider[model.Provider]++
		}
		for _, cap := range model.Capabilities {
			if stats.ByCapability == nil {
				stats.ByCapability = make(map[string]int)
			}
			stats.ByCapability[cap]++
		}
	}
	return stats
}
