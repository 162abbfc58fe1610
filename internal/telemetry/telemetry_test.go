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

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runlens/runlens/pkg/errors"
)

func TestSetupNoneExporter(t *testing.T) {
	p, err := Setup(context.Background(), Config{
		ServiceName:    "runlens-test",
		ServiceVersion: "0.0.0",
		Exporter:       ExporterNone,
	})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	assert.NotNil(t, p.MetricsHandler())
}

func TestSetupConsoleExporter(t *testing.T) {
	p, err := Setup(context.Background(), Config{
		ServiceName: "runlens-test",
		Exporter:    ExporterConsole,
	})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSetupUnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), Config{Exporter: "jaeger"})

	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "telemetry.exporter", verr.Field)
}

func TestMetricsRecording(t *testing.T) {
	p, err := Setup(context.Background(), Config{
		ServiceName: "runlens-test",
		Exporter:    ExporterNone,
	})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	m, err := NewMetrics()
	require.NoError(t, err)

	// Instruments accept records without panicking; values are scraped
	// through the prometheus handler in integration setups.
	ctx := context.Background()
	m.RecordFetched(ctx, "default", 10)
	m.RecordEmitted(ctx, "default", 1500)
	m.RecordSkipped(ctx, "default", "filter")
	m.RecordFailed(ctx, "default")
	m.RecordCycle(ctx, "default", 2*time.Second)
}
