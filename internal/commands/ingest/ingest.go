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

// Package ingest implements the ingest command: one-shot or continuous
// metadata ingestion from LangSmith (or a directory of run exports) into
// the catalog.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/runlens/runlens/internal/commands/shared"
	"github.com/runlens/runlens/internal/config"
	"github.com/runlens/runlens/internal/langsmith"
	"github.com/runlens/runlens/internal/pipeline"
	filesource "github.com/runlens/runlens/internal/source/file"
	"github.com/runlens/runlens/internal/state"
	"github.com/runlens/runlens/internal/telemetry"
)

var (
	flagDays      int
	flagLimit     int
	flagBatchSize int
	flagFilter    string
	flagProject   string
	flagDryRun    bool
	flagFollow    bool
	flagSource    string
	flagPattern   string
	flagOut       string
)

// NewCommand creates the ingest command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest LLM run metadata into the catalog",
		Long: `Fetch runs from LangSmith (or from exported JSON files), transform
them into catalog metadata, and emit runs, models, chains, and lineage.

One-shot mode ingests a historical window and exits. Follow mode keeps
polling for new runs, advancing a persisted watermark between cycles.

Examples:
  runlens ingest --days 7
  runlens ingest --filter '.status == "failed"' --dry-run
  runlens ingest --source ./exports --pattern '**/*.json'
  runlens ingest --follow`,
		RunE: runIngest,
	}

	cmd.Flags().IntVar(&flagDays, "days", 0, "Days of history to ingest (default from config)")
	cmd.Flags().IntVar(&flagLimit, "limit", 0, "Maximum runs to ingest (default from config)")
	cmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "Events per emit batch (default from config)")
	cmd.Flags().StringVar(&flagFilter, "filter", "", "jq expression; runs yielding false/null are skipped")
	cmd.Flags().StringVar(&flagProject, "project", "", "Tracing project to ingest (default from config)")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Print metadata to stdout instead of emitting")
	cmd.Flags().BoolVar(&flagFollow, "follow", false, "Keep polling for new runs")
	cmd.Flags().StringVar(&flagSource, "source", "", "Ingest from a directory of JSON run exports instead of the API")
	cmd.Flags().StringVar(&flagPattern, "pattern", "", "Glob for export files under --source (default **/*.json)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Write metadata to JSON files in this directory instead of emitting")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := shared.NewLogger()

	needSource := flagSource == ""
	cfg, err := shared.LoadConfig(needSource, logger)
	if err != nil {
		return err
	}
	applyFlags(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "runlens",
		ServiceVersion: versionString(),
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        cfg.Telemetry.Headers,
	})
	if err != nil {
		return shared.NewConfigError("failed to set up telemetry", err)
	}
	defer shutdownTelemetry(provider, logger)

	source, err := newSource(cfg, logger)
	if err != nil {
		return shared.NewSourceError("failed to create run source", err)
	}

	jobID := shared.JobID("runlens")
	emitter, err := pipeline.NewEmitter(cfg, jobID, flagOut, logger)
	if err != nil {
		return shared.NewCatalogError("failed to create emitter", err)
	}
	defer emitter.Close()

	var store *state.Store
	if !cfg.Catalog.DryRun {
		statePath, err := cfg.StatePath()
		if err != nil {
			return shared.NewIngestError("failed to resolve state path", err)
		}
		store, err = state.Open(statePath)
		if err != nil {
			return shared.NewIngestError("failed to open state store", err)
		}
		defer store.Close()
	}

	opts := pipeline.Options{
		Config:  cfg,
		Source:  source,
		Emitter: emitter,
		Store:   store,
		JobID:   jobID,
		Logger:  logger,
	}
	if flagFollow {
		metrics, err := telemetry.NewMetrics()
		if err != nil {
			return shared.NewIngestError("failed to create metrics", err)
		}
		opts.Metrics = metrics
	}

	// A followed file source tails the directory instead of polling; it
	// builds its own pipeline around per-file batches.
	if fs, ok := source.(*filesource.Source); ok && flagFollow {
		if err := followFiles(ctx, fs, opts); err != nil && ctx.Err() == nil {
			return shared.NewIngestError("follow failed", err)
		}
		return nil
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return shared.NewConfigError("failed to create pipeline", err)
	}

	if flagFollow {
		if err := p.Follow(ctx); err != nil && ctx.Err() == nil {
			return shared.NewIngestError("follow failed", err)
		}
		return nil
	}

	summary, err := p.Run(ctx)
	if err != nil {
		return shared.NewIngestError("ingestion failed", err)
	}
	return printSummary(cmd, summary)
}

// applyFlags overlays command-line flags onto the loaded config.
func applyFlags(cfg *config.Config) {
	if flagDays > 0 {
		cfg.Ingest.WindowDays = flagDays
	}
	if flagLimit > 0 {
		cfg.Ingest.Limit = flagLimit
	}
	if flagBatchSize > 0 {
		cfg.Ingest.BatchSize = flagBatchSize
	}
	if flagFilter != "" {
		cfg.Ingest.Filter = flagFilter
	}
	if flagProject != "" {
		cfg.LangSmith.Project = flagProject
	}
	if flagDryRun {
		cfg.Catalog.DryRun = true
	}
}

// newSource picks the run source: exported files when --source is given,
// the live API otherwise.
func newSource(cfg *config.Config, logger *slog.Logger) (pipeline.Source, error) {
	if flagSource != "" {
		return filesource.New(flagSource, flagPattern, logger)
	}
	return langsmith.New(langsmith.Options{
		APIKey:   cfg.LangSmith.APIKey,
		Endpoint: cfg.LangSmith.Endpoint,
		Project:  cfg.LangSmith.Project,
	}, logger)
}

// batchSource feeds a fixed batch of runs into one pipeline cycle.
type batchSource struct {
	runs []langsmith.Run
}

func (s *batchSource) ListRuns(_ context.Context, _ langsmith.ListOptions) ([]langsmith.Run, error) {
	return s.runs, nil
}

// followFiles ingests the existing export files, then tails the directory
// and runs one cycle per new or changed file. The state store keeps
// re-delivered files from double-emitting.
func followFiles(ctx context.Context, src *filesource.Source, opts pipeline.Options) error {
	batch := &batchSource{}
	opts.Source = batch

	p, err := pipeline.New(opts)
	if err != nil {
		return err
	}

	initial, err := src.ListRuns(ctx, langsmith.ListOptions{Limit: opts.Config.Ingest.Limit})
	if err != nil {
		return err
	}
	batch.runs = initial
	if _, err := p.Run(ctx); err != nil {
		return err
	}

	watcher, err := src.Watch(ctx)
	if err != nil {
		return err
	}
	defer watcher.Close()

	for delivered := range watcher.Batches() {
		batch.runs = delivered.Runs
		if _, err := p.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			opts.Logger.Error("failed to ingest batch", "path", delivered.Path, "error", err)
		}
	}
	return ctx.Err()
}

func versionString() string {
	v, _, _ := shared.GetVersion()
	return v
}

func shutdownTelemetry(provider *telemetry.Provider, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", "error", err)
	}
}

func printSummary(cmd *cobra.Command, summary *pipeline.Summary) error {
	if shared.GetJSON() {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Ingested %d of %d runs (%d skipped, %d failed)\n",
		summary.Emitted, summary.Fetched, summary.Skipped, summary.Failed)
	cmd.Printf("Window: %s to %s\n",
		summary.WindowStart.Format(time.RFC3339), summary.WindowEnd.Format(time.RFC3339))

	stats := summary.RunStats
	if stats.TotalRuns > 0 {
		cmd.Printf("Success rate: %.1f%%\n", stats.SuccessRate*100)
		cmd.Printf("Average latency: %s\n", stats.AverageLatency.Round(time.Millisecond))
		cmd.Printf("Total tokens: %d\n", stats.TotalTokens)
		if stats.TotalCost > 0 {
			cmd.Printf("Total cost: $%.4f\n", stats.TotalCost)
		}
		for errMsg, count := range stats.ErrorDistribution {
			cmd.Printf("  error x%d: %s\n", count, errMsg)
		}
	}
	if summary.LineageEdges > 0 {
		cmd.Printf("Lineage edges: %d\n", summary.LineageEdges)
	}
	if summary.ModelStats.TotalModels > 0 {
		cmd.Printf("Models: %d", summary.ModelStats.TotalModels)
		for provider, count := range summary.ModelStats.ByProvider {
			cmd.Printf(" %s=%d", provider, count)
		}
		cmd.Println()
	}
	return nil
}
