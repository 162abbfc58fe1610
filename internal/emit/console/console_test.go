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

package console

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runlens/runlens/pkg/metadata"
)

func TestEmitRunPrintsEnvelope(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf, "job-1")

	urn, err := e.EmitRun(context.Background(), &metadata.Run{
		ID:        "run-1",
		StartTime: time.Now(),
		Status:    metadata.StatusCompleted,
	})
	require.NoError(t, err)

	assert.Equal(t, metadata.RunURN("run-1"), urn)
	assert.Contains(t, buf.String(), "=== Run Metadata ===")
	assert.Contains(t, buf.String(), metadata.RunURN("run-1"))
	assert.Contains(t, buf.String(), metadata.SnapshotDataset)
}

func TestEmitLineagePrintsEdge(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf, "job-1")

	err := e.EmitLineage(context.Background(), metadata.LineageEdge{
		SourceURN: metadata.RunURN("run-1"),
		TargetURN: metadata.ModelURN("OpenAI", "gpt-4o"),
		Type:      metadata.LineageUses,
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "=== Lineage ===")
	assert.Contains(t, buf.String(), `"Uses"`)
}

func TestCloseSummarizesCount(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf, "job-1")

	_, err := e.EmitModel(context.Background(), &metadata.Model{
		Name: "gpt-4o", Provider: "OpenAI", Family: "GPT-4",
	})
	require.NoError(t, err)
	_, err = e.EmitChain(context.Background(), &metadata.Chain{ID: "c1", Name: "rag"})
	require.NoError(t, err)

	require.NoError(t, e.Close())
	assert.Contains(t, buf.String(), "DRY RUN complete: 2 events printed")
}
