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

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the pipeline's instruments. All counters carry a project
// attribute so multi-project follow deployments stay distinguishable.
type Metrics struct {
	runsFetched   metric.Int64Counter
	runsEmitted   metric.Int64Counter
	runsSkipped   metric.Int64Counter
	runsFailed    metric.Int64Counter
	cycleDuration metric.Float64Histogram
	tokensTotal   metric.Int64Counter
}

// NewMetrics creates the pipeline instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("runlens/pipeline")

	m := &Metrics{}
	var err error

	if m.runsFetched, err = meter.Int64Counter("runlens_runs_fetched_total",
		metric.WithDescription("Runs fetched from the source platform")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.runsEmitted, err = meter.Int64Counter("runlens_runs_emitted_total",
		metric.WithDescription("Runs emitted to the metadata sink")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.runsSkipped, err = meter.Int64Counter("runlens_runs_skipped_total",
		metric.WithDescription("Runs skipped by filter or dedupe")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.runsFailed, err = meter.Int64Counter("runlens_runs_failed_total",
		metric.WithDescription("Runs that failed to emit")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.cycleDuration, err = meter.Float64Histogram("runlens_cycle_duration_seconds",
		metric.WithDescription("Duration of one ingestion cycle"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	if m.tokensTotal, err = meter.Int64Counter("runlens_tokens_total",
		metric.WithDescription("Token usage observed across ingested runs")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return m, nil
}

// RecordFetched counts runs fetched for a project.
func (m *Metrics) RecordFetched(ctx context.Context, project string, n int) {
	m.runsFetched.Add(ctx, int64(n), metric.WithAttributes(attribute.String("project", project)))
}

// RecordEmitted counts a successfully emitted run and its token usage.
func (m *Metrics) RecordEmitted(ctx context.Context, project string, tokens int64) {
	attrs := metric.WithAttributes(attribute.String("project", project))
	m.runsEmitted.Add(ctx, 1, attrs)
	if tokens > 0 {
		m.tokensTotal.Add(ctx, tokens, attrs)
	}
}

// RecordSkipped counts a run dropped by filtering or dedupe.
func (m *Metrics) RecordSkipped(ctx context.Context, project, reason string) {
	m.runsSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("project", project),
		attribute.String("reason", reason),
	))
}

// RecordFailed counts a run that could not be emitted.
func (m *Metrics) RecordFailed(ctx context.Context, project string) {
	m.runsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("project", project)))
}

// RecordCycle records one ingestion cycle's duration.
func (m *Metrics) RecordCycle(ctx context.Context, project string, d time.Duration) {
	m.cycleDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("project", project)))
}
