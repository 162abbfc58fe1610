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

// Package setup implements the setup command: one-time catalog
// registration of source platforms and custom LLM entity types.
package setup

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/runlens/runlens/internal/commands/shared"
	"github.com/runlens/runlens/internal/emit/console"
	"github.com/runlens/runlens/internal/emit/datahub"
	"github.com/runlens/runlens/internal/registry"
)

var flagDryRun bool

// NewCommand creates the setup command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register platforms and LLM entity types with the catalog",
		Long: `Register the source platforms (LangChain, LangSmith, llm) and the
custom LLM entity type definitions with the catalog. Registration is an
upsert; re-running setup is safe.

Run this once before the first ingest against a fresh catalog.`,
		RunE: runSetup,
	}

	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Print registration events instead of emitting")

	return cmd
}

func runSetup(cmd *cobra.Command, args []string) error {
	logger := shared.NewLogger()

	cfg, err := shared.LoadConfig(false, logger)
	if err != nil {
		return err
	}
	if flagDryRun {
		cfg.Catalog.DryRun = true
	}

	ctx := cmd.Context()
	jobID := shared.JobID("runlens-setup")

	var sink registry.EventSink
	if cfg.Catalog.DryRun {
		sink = console.New(os.Stdout, jobID)
	} else {
		emitter, err := datahub.New(datahub.Config{
			GMSURL:  cfg.Catalog.GMSURL,
			Token:   cfg.Catalog.Token,
			JobID:   jobID,
			Timeout: cfg.Catalog.Timeout,
		}, logger)
		if err != nil {
			return shared.NewCatalogError("failed to create emitter", err)
		}
		defer emitter.Close()

		if err := emitter.CheckHealth(ctx); err != nil {
			return shared.NewCatalogError("catalog is unreachable", err)
		}
		sink = emitter
	}

	reg := registry.New(sink, logger)
	if err := reg.RegisterPlatforms(ctx); err != nil {
		return shared.NewCatalogError("platform registration failed", err)
	}
	if err := reg.RegisterTypes(ctx); err != nil {
		return shared.NewCatalogError("type registration failed", err)
	}

	// The live emitter batches; push the registration events out now so a
	// failure surfaces as a setup error rather than a silent close.
	if emitter, ok := sink.(*datahub.Emitter); ok {
		if err := emitter.Flush(ctx); err != nil {
			return shared.NewCatalogError("failed to flush registration events", err)
		}
	}

	cmd.Println("Catalog setup complete.")
	return nil
}
