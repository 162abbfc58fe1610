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

package collect

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runlens/runlens/pkg/metadata"
)

type fakeSource struct {
	name string
	runs []metadata.Run
	err  error
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Runs(_ context.Context, _, _ time.Time, _ int) ([]metadata.Run, error) {
	return s.runs, s.err
}

func TestCollectorMergesSources(t *testing.T) {
	c := New([]Source{
		&fakeSource{name: "a", runs: []metadata.Run{{ID: "run-1"}, {ID: "run-2"}}},
		&fakeSource{name: "b", runs: []metadata.Run{{ID: "run-3"}}},
	}, nil)

	runs := c.Runs(context.Background(), time.Time{}, time.Time{}, 0)
	require.Len(t, runs, 3)
}

func TestCollectorSkipsFailingSource(t *testing.T) {
	c := New([]Source{
		&fakeSource{name: "broken", err: fmt.Errorf("connection refused")},
		&fakeSource{name: "ok", runs: []metadata.Run{{ID: "run-1"}}},
	}, nil)

	runs := c.Runs(context.Background(), time.Time{}, time.Time{}, 0)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestStats(t *testing.T) {
	runs := []metadata.Run{
		{ID: "run-1", Status: metadata.StatusCompleted, Latency: 2 * time.Second, Cost: 0.01,
			Usage: metadata.TokenUsage{TotalTokens: 100}},
		{ID: "run-2", Status: metadata.StatusCompleted, Latency: 4 * time.Second, Cost: 0.02,
			Usage: metadata.TokenUsage{TotalTokens: 200}},
		{ID: "run-3", Status: metadata.StatusFailed, Error: "rate limit exceeded"},
		{ID: "run-4", Status: metadata.StatusFailed, Error: "rate limit exceeded"},
	}

	stats := Stats(runs)
	assert.Equal(t, 4, stats.TotalRuns)
	assert.InDelta(t, 0.5, stats.SuccessRate, 0.001)
	assert.Equal(t, 3*time.Second, stats.AverageLatency)
	assert.InDelta(t, 0.03, stats.TotalCost, 0.0001)
	assert.Equal(t, int64(300), stats.TotalTokens)
	assert.Equal(t, map[string]int{"rate limit exceeded": 2}, stats.ErrorDistribution)
}

func TestStatsEmpty(t *testing.T) {
	stats := Stats(nil)
	assert.Equal(t, 0, stats.TotalRuns)
	assert.Zero(t, stats.SuccessRate)
	assert.Zero(t, stats.AverageLatency)
}

func TestModelsDeduplicates(t *testing.T) {
	gpt4 := &metadata.Model{Name: "gpt-4", Provider: "OpenAI", Family: "GPT-4"}
	claude := &metadata.Model{Name: "claude-3-opus", Provider: "Anthropic", Family: "Claude"}

	models := Models([]metadata.Run{
		{ID: "run-1", Model: gpt4},
		{ID: "run-2", Model: gpt4},
		{ID: "run-3", Model: claude},
		{ID: "run-4"},
	})
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-4", models[0].Name)
	assert.Equal(t, "claude-3-opus", models[1].Name)
}

func TestStatsForModels(t *testing.T) {
	stats := StatsForModels([]metadata.Model{
		{Name: "gpt-4", Provider: "OpenAI", Capabilities: []string{"text-generation", "chat"}},
		{Name: "gpt-3.5-turbo", Provider: "OpenAI", Capabilities: []string{"text-generation", "chat"}},
		{Name: "claude-3-opus", Provider: "Anthropic", Capabilities: []string{"text-generation"}},
	})

	assert.Equal(t, 3, stats.TotalModels)
	assert.Equal(t, map[string]int{"OpenAI": 2, "Anthropic": 1}, stats.ByProvider)
	assert.Equal(t, 3, stats.ByCapability["text-generation"])
	assert.Equal(t, 2, stats.ByCapability["chat"])
}
