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

// Package config loads and validates runlens configuration from a YAML file
// with environment-variable overrides. Environment names follow the ones the
// catalog and tracing ecosystems already use (DATAHUB_*, LANGSMITH_API_KEY,
// LANGCHAIN_*) so existing deployments work without a config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	runlenserrors "github.com/runlens/runlens/pkg/errors"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Defaults applied when neither file nor environment provide a value.
const (
	DefaultGMSURL       = "http://localhost:8080"
	DefaultFrontendURL  = "http://localhost:9002"
	DefaultEndpoint     = "https://api.smith.langchain.com"
	DefaultProject      = "default"
	DefaultWindowDays   = 7
	DefaultBatchSize    = 100
	DefaultLimit        = 1000
	DefaultPollInterval = time.Minute
)

// Config is the complete runlens configuration.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	LangSmith LangSmithConfig `yaml:"langsmith"`
	Ingest    IngestConfig    `yaml:"ingest"`
	State     StateConfig     `yaml:"state"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CatalogConfig configures the DataHub metadata service connection.
type CatalogConfig struct {
	// GMSURL is the metadata service endpoint.
	// Environment: DATAHUB_GMS_URL
	GMSURL string `yaml:"gms_url"`

	// FrontendURL is the catalog UI endpoint, used for link rendering.
	// Environment: DATAHUB_FRONTEND_URL
	FrontendURL string `yaml:"frontend_url,omitempty"`

	// Token is the personal access token for the metadata service.
	// Environment: DATAHUB_TOKEN. Supports "keyring:<key>" references.
	Token string `yaml:"token,omitempty"`

	// DryRun routes all emission to the console sink; no network calls.
	// Environment: DATAHUB_DRY_RUN
	DryRun bool `yaml:"dry_run"`

	// Timeout is the per-request timeout for catalog calls.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// LangSmithConfig configures the run-history source platform.
type LangSmithConfig struct {
	// APIKey authenticates against the run-history API.
	// Environment: LANGSMITH_API_KEY. Supports "keyring:<key>" references.
	APIKey string `yaml:"api_key,omitempty"`

	// Endpoint is the API base URL.
	// Environment: LANGCHAIN_ENDPOINT
	Endpoint string `yaml:"endpoint,omitempty"`

	// Project is the tracing project to ingest.
	// Environment: LANGCHAIN_PROJECT
	Project string `yaml:"project,omitempty"`
}

// IngestConfig controls the historical ingestion pipeline.
type IngestConfig struct {
	// WindowDays is how many days of history to fetch.
	// Environment: INGEST_WINDOW_DAYS
	WindowDays int `yaml:"window_days,omitempty"`

	// BatchSize is the number of change events per emit batch.
	// Environment: INGEST_BATCH_SIZE
	BatchSize int `yaml:"batch_size,omitempty"`

	// Limit caps the number of runs fetched per job.
	// Environment: INGEST_LIMIT
	Limit int `yaml:"limit,omitempty"`

	// Filter is an optional jq expression; runs for which it yields
	// false/null are skipped.
	Filter string `yaml:"filter,omitempty"`

	// PollInterval is the cycle period in follow mode.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	// MetricsAddr, when set, serves Prometheus metrics in follow mode
	// (e.g., ":9464").
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// StateConfig configures the local state store.
type StateConfig struct {
	// Path is the SQLite database file. Empty selects
	// <config dir>/state.db; ":memory:" keeps state per-process.
	Path string `yaml:"path,omitempty"`
}

// TelemetryConfig configures pipeline self-instrumentation.
type TelemetryConfig struct {
	// Exporter selects the span exporter: console, otlp, otlp_http, none.
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the OTLP collector endpoint (host:port for gRPC,
	// URL for HTTP).
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS on the OTLP connection.
	Insecure bool `yaml:"insecure,omitempty"`

	// Headers are attached to every export request.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			GMSURL:      DefaultGMSURL,
			FrontendURL: DefaultFrontendURL,
			Timeout:     30 * time.Second,
		},
		LangSmith: LangSmithConfig{
			Endpoint: DefaultEndpoint,
			Project:  DefaultProject,
		},
		Ingest: IngestConfig{
			WindowDays:   DefaultWindowDays,
			BatchSize:    DefaultBatchSize,
			Limit:        DefaultLimit,
			PollInterval: DefaultPollInterval,
		},
		Telemetry: TelemetryConfig{
			Exporter: "none",
		},
	}
}

// Load reads configuration from the given file (optional), then applies
// environment overrides and fills defaults. A missing file is not an error
// when path is empty; an explicit path that does not exist is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		if dir, err := Dir(); err == nil {
			path = dir + "/config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// No config file is fine; env and defaults carry it.
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
// Environment always wins over the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATAHUB_GMS_URL"); v != "" {
		c.Catalog.GMSURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("DATAHUB_FRONTEND_URL"); v != "" {
		c.Catalog.FrontendURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("DATAHUB_TOKEN"); v != "" {
		c.Catalog.Token = v
	}
	if v := os.Getenv("DATAHUB_DRY_RUN"); v != "" {
		c.Catalog.DryRun = parseBool(v)
	}

	if v := os.Getenv("LANGSMITH_API_KEY"); v != "" {
		c.LangSmith.APIKey = v
	}
	if v := os.Getenv("LANGCHAIN_ENDPOINT"); v != "" {
		c.LangSmith.Endpoint = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("LANGCHAIN_PROJECT"); v != "" {
		c.LangSmith.Project = v
	}

	if v := os.Getenv("INGEST_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.WindowDays = n
		}
	}
	if v := os.Getenv("INGEST_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.BatchSize = n
		}
	}
	if v := os.Getenv("INGEST_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.Limit = n
		}
	}
}

// fillDefaults backfills zero values after file/env merging.
func (c *Config) fillDefaults() {
	if c.Catalog.GMSURL == "" {
		c.Catalog.GMSURL = DefaultGMSURL
	}
	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = 30 * time.Second
	}
	if c.LangSmith.Endpoint == "" {
		c.LangSmith.Endpoint = DefaultEndpoint
	}
	if c.LangSmith.Project == "" {
		c.LangSmith.Project = DefaultProject
	}
	if c.Ingest.WindowDays <= 0 {
		c.Ingest.WindowDays = DefaultWindowDays
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = DefaultBatchSize
	}
	if c.Ingest.Limit <= 0 {
		c.Ingest.Limit = DefaultLimit
	}
	if c.Ingest.PollInterval <= 0 {
		c.Ingest.PollInterval = DefaultPollInterval
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = "none"
	}
}

// Validate checks the configuration for a given run mode.
// Live (non-dry-run) emission requires a GMS URL and token; ingesting from
// the run-history platform requires an API key.
func (c *Config) Validate(needSource bool) error {
	if !c.Catalog.DryRun {
		if c.Catalog.GMSURL == "" {
			return &runlenserrors.ValidationError{
				Field:      "catalog.gms_url",
				Message:    "required when not in dry run mode",
				Suggestion: "set DATAHUB_GMS_URL or catalog.gms_url, or pass --dry-run",
			}
		}
		if c.Catalog.Token == "" {
			return &runlenserrors.ValidationError{
				Field:      "catalog.token",
				Message:    "required when not in dry run mode",
				Suggestion: "set DATAHUB_TOKEN, store it with 'runlens secrets set datahub-token', or pass --dry-run",
			}
		}
	}

	if needSource && c.LangSmith.APIKey == "" {
		return &runlenserrors.ValidationError{
			Field:      "langsmith.api_key",
			Message:    "required to fetch run history",
			Suggestion: "set LANGSMITH_API_KEY or store it with 'runlens secrets set langsmith-api-key'",
		}
	}

	if c.Ingest.BatchSize > c.Ingest.Limit {
		return &runlenserrors.ValidationError{
			Field:   "ingest.batch_size",
			Message: fmt.Sprintf("batch size %d exceeds limit %d", c.Ingest.BatchSize, c.Ingest.Limit),
		}
	}

	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
