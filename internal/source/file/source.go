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

// Package file reads run exports from JSON files on disk instead of the
// live API. Each matched file holds either a single run object or an array
// of runs in the platform's export format.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/runlens/runlens/internal/langsmith"
	"github.com/runlens/runlens/pkg/errors"
)

// DefaultPattern matches run export files anywhere under the source dir.
const DefaultPattern = "**/*.json"

// Source reads runs from a directory of JSON export files.
type Source struct {
	dir     string
	pattern string
	logger  *slog.Logger
}

// New creates a file source rooted at dir. pattern is a doublestar glob
// applied to paths relative to dir; empty means DefaultPattern.
func New(dir, pattern string, logger *slog.Logger) (*Source, error) {
	if dir == "" {
		return nil, &errors.ValidationError{
			Field:      "source_dir",
			Message:    "source directory is required",
			Suggestion: "pass --source with a directory of run export files",
		}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &errors.ValidationError{
			Field:   "source_dir",
			Message: fmt.Sprintf("cannot read source directory: %v", err),
		}
	}
	if !info.IsDir() {
		return nil, &errors.ValidationError{
			Field:   "source_dir",
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}

	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, &errors.ValidationError{
			Field:   "pattern",
			Message: fmt.Sprintf("invalid glob pattern %q", pattern),
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{
		dir:     dir,
		pattern: pattern,
		logger:  logger.With("component", "filesource", "dir", dir),
	}, nil
}

// Name identifies this source in logs and stats.
func (s *Source) Name() string { return "file:" + s.dir }

// ListRuns reads all matching export files and returns their runs, filtered
// to the window and ordered by start time.
func (s *Source) ListRuns(ctx context.Context, opts langsmith.ListOptions) ([]langsmith.Run, error) {
	paths, err := s.matchFiles()
	if err != nil {
		return nil, err
	}

	var runs []langsmith.Run
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileRuns, err := ReadRuns(path)
		if err != nil {
			s.logger.Warn("skipping unreadable export file", "path", path, "error", err)
			continue
		}
		runs = append(runs, fileRuns...)
	}

	runs = filterWindow(runs, opts.StartTime, opts.EndTime)
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.Before(runs[j].StartTime)
	})
	if opts.Limit > 0 && len(runs) > opts.Limit {
		runs = runs[:opts.Limit]
	}

	s.logger.Info("loaded runs from files", "files", len(paths), "runs", len(runs))
	return runs, nil
}

// matchFiles walks the source dir collecting paths that match the glob.
func (s *Source) matchFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		ok, err := doublestar.Match(s.pattern, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan source directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadRuns decodes one export file. The file may contain a single run
// object, an array of runs, or an object with a "runs" key.
func ReadRuns(path string) ([]langsmith.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var runs []langsmith.Run
	if err := json.Unmarshal(data, &runs); err == nil {
		return runs, nil
	}

	var wrapped struct {
		Runs []langsmith.Run `json:"runs"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Runs) > 0 {
		return wrapped.Runs, nil
	}

	var single langsmith.Run
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("not a run export: %w", err)
	}
	if single.ID == "" {
		return nil, fmt.Errorf("not a run export: missing run id")
	}
	return []langsmith.Run{single}, nil
}

func filterWindow(runs []langsmith.Run, start, end time.Time) []langsmith.Run {
	if start.IsZero() && end.IsZero() {
		return runs
	}
	filtered := runs[:0]
	for _, run := range runs {
		if !start.IsZero() && run.StartTime.Before(start) {
			continue
		}
		if !end.IsZero() && run.StartTime.After(end) {
			continue
		}
		filtered = append(filtered, run)
	}
	return filtered
}
