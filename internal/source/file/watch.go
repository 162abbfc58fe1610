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

package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/runlens/runlens/internal/langsmith"
)

// settleDelay is how long a file must be quiet before it is read. Exporters
// write large files in several chunks; reading on the first event would see
// a truncated document.
const settleDelay = 500 * time.Millisecond

// Batch is one watched file's worth of runs.
type Batch struct {
	Path string
	Runs []langsmith.Run
}

// Watcher tails the source directory and delivers runs from files as they
// appear or change.
type Watcher struct {
	source  *Source
	watcher *fsnotify.Watcher
	batches chan Batch
	done    chan struct{}
}

// Watch starts watching the source directory. The returned watcher delivers
// batches until ctx is cancelled or Close is called.
func (s *Source) Watch(ctx context.Context) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(s.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	w := &Watcher{
		source:  s,
		watcher: fsw,
		batches: make(chan Batch, 16),
		done:    make(chan struct{}),
	}
	go w.loop(ctx)
	s.logger.Info("watching for run exports", "pattern", s.pattern)
	return w, nil
}

// Batches returns the channel of decoded run batches. It is closed when the
// watcher stops.
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

// Close stops the watcher and waits for the event loop to drain.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer close(w.batches)

	// pending maps path -> deadline after which the file is read.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settleDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.source.logger.Info("watch stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			pending[event.Name] = time.Now().Add(settleDelay)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.source.logger.Error("watch error", "error", err)

		case now := <-ticker.C:
			for path, deadline := range pending {
				if now.Before(deadline) {
					continue
				}
				delete(pending, path)
				w.deliver(ctx, path)
			}
		}
	}
}

func (w *Watcher) matches(path string) bool {
	rel, err := filepath.Rel(w.source.dir, path)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(w.source.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

func (w *Watcher) deliver(ctx context.Context, path string) {
	runs, err := ReadRuns(path)
	if err != nil {
		w.source.logger.Warn("skipping unreadable export file", "path", path, "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}
	select {
	case w.batches <- Batch{Path: path, Runs: runs}:
		w.source.logger.Debug("delivered run batch", "path", path, "runs", len(runs))
	case <-ctx.Done():
	}
}
