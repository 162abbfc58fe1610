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

package export

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTLSConfigDefaults(t *testing.T) {
	cfg, err := NewTLSConfig("")
	require.NoError(t, err)

	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Nil(t, cfg.RootCAs)
	assert.NoError(t, ValidateTLSConfig(cfg))
}

func TestNewTLSConfigMissingCA(t *testing.T) {
	_, err := NewTLSConfig("/nonexistent/ca.pem")
	assert.Error(t, err)
}

func TestValidateTLSConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *tls.Config
		wantErr bool
	}{
		{"nil config", nil, true},
		{"old version", &tls.Config{MinVersion: tls.VersionTLS10}, true},
		{"skip verify", &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true}, true},
		{"valid", &tls.Config{MinVersion: tls.VersionTLS13}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTLSConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
