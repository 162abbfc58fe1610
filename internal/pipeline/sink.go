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

package pipeline

import (
	"log/slog"
	"os"

	"github.com/runlens/runlens/internal/config"
	"github.com/runlens/runlens/internal/emit"
	"github.com/runlens/runlens/internal/emit/console"
	"github.com/runlens/runlens/internal/emit/datahub"
	"github.com/runlens/runlens/internal/emit/file"
)

// NewEmitter selects the sink for a job: stdout in dry-run mode, JSON
// files when outDir is set, the live catalog otherwise.
func NewEmitter(cfg *config.Config, jobID, outDir string, logger *slog.Logger) (emit.Emitter, error) {
	switch {
	case cfg.Catalog.DryRun:
		return console.New(os.Stdout, jobID), nil
	case outDir != "":
		return file.New(outDir, jobID)
	default:
		return datahub.New(datahub.Config{
			GMSURL:    cfg.Catalog.GMSURL,
			Token:     cfg.Catalog.Token,
			JobID:     jobID,
			BatchSize: cfg.Ingest.BatchSize,
			Timeout:   cfg.Catalog.Timeout,
		}, logger)
	}
}
