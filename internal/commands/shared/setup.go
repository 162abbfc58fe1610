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

package shared

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/runlens/runlens/internal/config"
	"github.com/runlens/runlens/internal/log"
	"github.com/runlens/runlens/internal/secrets"
)

// tokenExpiryWarning is how far ahead of token expiry to start warning.
const tokenExpiryWarning = 7 * 24 * time.Hour

// NewLogger builds the logger for a command invocation, honoring the
// --verbose and --quiet flags over the environment.
func NewLogger() *slog.Logger {
	cfg := log.FromEnv()
	if verboseFlag {
		cfg.Level = "debug"
	}
	if quietFlag {
		cfg.Level = "error"
	}
	return log.New(cfg)
}

// LoadConfig loads configuration from --config (or the default path),
// resolves keychain references, and validates it. needSource requires a
// usable run source in addition to the catalog settings.
func LoadConfig(needSource bool, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}

	store := secrets.NewStore()
	if cfg.Catalog.Token, err = store.Resolve(cfg.Catalog.Token); err != nil {
		return nil, NewConfigError("failed to resolve catalog token", err)
	}
	if cfg.LangSmith.APIKey, err = store.Resolve(cfg.LangSmith.APIKey); err != nil {
		return nil, NewConfigError("failed to resolve LangSmith API key", err)
	}

	if err := cfg.Validate(needSource); err != nil {
		return nil, NewConfigError("invalid configuration", err)
	}

	warnOnExpiringToken(cfg.Catalog.Token, logger)
	return cfg, nil
}

// warnOnExpiringToken surfaces catalog PAT expiry before it causes
// confusing 401s mid-ingestion.
func warnOnExpiringToken(token string, logger *slog.Logger) {
	if token == "" || logger == nil {
		return
	}
	expiry, ok := config.TokenExpiry(token)
	if !ok {
		return
	}
	if time.Until(expiry) < 0 {
		logger.Warn("catalog token has expired", "expired_at", expiry.Format(time.RFC3339))
		return
	}
	if config.TokenExpiresWithin(token, tokenExpiryWarning) {
		logger.Warn("catalog token expires soon",
			"expires_at", expiry.Format(time.RFC3339),
			"remaining", time.Until(expiry).Round(time.Hour).String())
	}
}

// JobID builds the ingestion job id stamped into emitted system metadata.
func JobID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().Unix())
}
