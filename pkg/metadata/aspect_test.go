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

package metadata

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURNs(t *testing.T) {
	assert.Equal(t,
		"urn:li:dataset:(urn:li:dataPlatform:llm,runs/abc-123,PROD)",
		RunURN("abc-123"))
	assert.Equal(t,
		"urn:li:dataset:(urn:li:dataPlatform:llm,chains/xyz,PROD)",
		ChainURN("xyz"))
	assert.Equal(t,
		"urn:li:mlModel:(urn:li:dataPlatform:llm,OpenAI/gpt-4o,PROD)",
		ModelURN("OpenAI", "gpt-4o"))

	assert.True(t, IsDatasetURN(RunURN("abc")))
	assert.False(t, IsMLModelURN(RunURN("abc")))
	assert.True(t, IsMLModelURN(ModelURN("OpenAI", "gpt-4o")))
}

func TestDatasetEventEnvelope(t *testing.T) {
	event := DatasetEvent(RunURN("run-1"), PropertiesValue{
		Name:        "run-1",
		Description: "LLM Run run-1",
		CustomProperties: map[string]string{
			"status": "completed",
		},
	})
	event.SystemMetadata = NewSystemMetadata("langsmith-ingest", time.UnixMilli(1700000000000))

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	entity := decoded["entity"].(map[string]any)
	value := entity["value"].(map[string]any)
	snapshot, ok := value[SnapshotDataset].(map[string]any)
	require.True(t, ok, "snapshot keyed by class name")

	assert.Equal(t, RunURN("run-1"), snapshot["urn"])

	aspects := snapshot["aspects"].([]any)
	require.Len(t, aspects, 2)

	// Status aspect always comes first
	status := aspects[0].(map[string]any)
	_, hasStatus := status[AspectStatus]
	assert.True(t, hasStatus)

	props := aspects[1].(map[string]any)
	propsBody, hasProps := props[AspectDatasetProperties].(map[string]any)
	require.True(t, hasProps)
	assert.Equal(t, "LLM Run run-1", propsBody["description"])

	system := decoded["systemMetadata"].(map[string]any)
	assert.Equal(t, float64(1700000000000), system["lastObserved"])
	assert.Equal(t, "langsmith-ingest", system["runId"])
}

func TestAspectRoundTrip(t *testing.T) {
	a := Aspect{Name: AspectStatus, Value: StatusValue{Removed: false}}

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"com.linkedin.common.Status":{"removed":false}}`, string(data))

	var decoded Aspect
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, AspectStatus, decoded.Name)
}

func TestLineageEventClassSelection(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	run := LineageEvent(RunURN("r"), ModelURN("OpenAI", "gpt-4o"), LineageUses, now)
	assert.Equal(t, SnapshotDataset, run.Snapshot.Class)

	model := LineageEvent(ModelURN("OpenAI", "gpt-4o"), RunURN("r"), LineageUses, now)
	assert.Equal(t, SnapshotMLModel, model.Snapshot.Class)

	require.Len(t, run.Snapshot.Aspects, 1)
	lineage := run.Snapshot.Aspects[0].Value.(UpstreamLineageValue)
	require.Len(t, lineage.Upstreams, 1)
	assert.Equal(t, ModelURN("OpenAI", "gpt-4o"), lineage.Upstreams[0].Dataset)
	assert.Equal(t, LineageUses, lineage.Upstreams[0].Type)
	assert.Equal(t, now.UnixMilli(), lineage.Upstreams[0].AuditStamp.Time)
}

func TestRunDuration(t *testing.T) {
	start := time.Now()

	r := &Run{StartTime: start, EndTime: start.Add(2 * time.Second)}
	assert.Equal(t, 2*time.Second, r.Duration())

	// Reported latency wins over timestamps
	r.Latency = 5 * time.Second
	assert.Equal(t, 5*time.Second, r.Duration())

	// Still-running run has no duration
	running := &Run{StartTime: start, Status: StatusRunning}
	assert.Equal(t, time.Duration(0), running.Duration())
}

func TestTokenUsageIsZero(t *testing.T) {
	assert.True(t, TokenUsage{}.IsZero())
	assert.False(t, TokenUsage{TotalTokens: 10}.IsZero())
}
