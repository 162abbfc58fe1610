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
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Follow runs ingestion cycles until ctx is cancelled. A failing cycle is
// logged and the loop keeps going; transient upstream outages should not
// kill a long-running follower.
func (p *Pipeline) Follow(ctx context.Context) error {
	interval := p.cfg.Ingest.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}

	var metricsSrv *http.Server
	if addr := p.cfg.Ingest.MetricsAddr; addr != "" {
		metricsSrv = p.serveMetrics(addr)
		defer p.shutdownMetrics(metricsSrv)
	}

	p.logger.Info("following", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("follow stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		p.logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func (p *Pipeline) shutdownMetrics(srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		p.logger.Warn("metrics server shutdown failed", "error", err)
	}
}
