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
	"time"
)

// Fully-qualified aspect names understood by the catalog schema.
const (
	AspectStatus            = "com.linkedin.common.Status"
	AspectDatasetProperties = "com.linkedin.dataset.DatasetProperties"
	AspectMLModelProperties = "com.linkedin.ml.metadata.MLModelProperties"
	AspectUpstreamLineage   = "com.linkedin.dataset.UpstreamLineage"
	AspectDataPlatformInfo  = "com.linkedin.dataplatform.DataPlatformInfo"
)

// Snapshot entity classes for the ingestion envelope.
const (
	SnapshotDataset      = "com.linkedin.metadata.snapshot.DatasetSnapshot"
	SnapshotMLModel      = "com.linkedin.metadata.snapshot.MLModelSnapshot"
	SnapshotDataPlatform = "com.linkedin.metadata.snapshot.DataPlatformSnapshot"
)

// Aspect is one named, versioned property bundle attached to an entity.
// It serializes as a single-key object: {"<fq name>": <value>}.
type Aspect struct {
	Name  string
	Value any
}

// MarshalJSON implements json.Marshaler.
func (a Aspect) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{a.Name: a.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Aspect) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for name, raw := range m {
		a.Name = name
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		a.Value = v
		return nil
	}
	return nil
}

// StatusValue is the common Status aspect body.
type StatusValue struct {
	Removed bool `json:"removed"`
}

// PropertiesValue is the body shared by dataset and ML model property aspects.
// CustomProperties values are flattened to strings, as the catalog requires.
type PropertiesValue struct {
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
}

// DataPlatformInfoValue is the DataPlatformInfo aspect body, used when
// registering custom platforms with the catalog.
type DataPlatformInfoValue struct {
	Name                 string `json:"name"`
	DisplayName          string `json:"displayName,omitempty"`
	Type                 string `json:"type"`
	DatasetNameDelimiter string `json:"datasetNameDelimiter"`
	LogoURL              string `json:"logoUrl,omitempty"`
	Info                 string `json:"info,omitempty"`
}

// AuditStamp records who observed a change and when (epoch millis).
type AuditStamp struct {
	Time  int64  `json:"time"`
	Actor string `json:"actor"`
}

// UpstreamRef points at one upstream entity in a lineage aspect.
type UpstreamRef struct {
	AuditStamp AuditStamp `json:"auditStamp"`
	Dataset    string     `json:"dataset"`
	Type       string     `json:"type"`
}

// UpstreamLineageValue is the UpstreamLineage aspect body.
type UpstreamLineageValue struct {
	Upstreams []UpstreamRef `json:"upstreams"`
}

// Snapshot is a proposed entity state: the URN plus an ordered aspect list.
type Snapshot struct {
	// Class selects the snapshot entity type (SnapshotDataset, ...).
	Class   string
	URN     string
	Aspects []Aspect
}

// SystemMetadata describes the ingestion job that produced a change event.
type SystemMetadata struct {
	// LastObserved is the observation time in epoch millis.
	LastObserved int64 `json:"lastObserved"`

	// RunID identifies the ingestion job for idempotent replays.
	RunID string `json:"runId"`
}

// ChangeEvent is one unit of catalog ingestion: a snapshot wrapped in the
// REST envelope the /entities?action=ingest endpoint accepts.
type ChangeEvent struct {
	Snapshot       Snapshot
	SystemMetadata *SystemMetadata
}

// MarshalJSON implements json.Marshaler, producing the ingest envelope:
//
//	{"entity": {"value": {"<snapshot class>": {"urn": ..., "aspects": [...]}}},
//	 "systemMetadata": {...}}
func (e ChangeEvent) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"entity": map[string]any{
			"value": map[string]any{
				e.Snapshot.Class: map[string]any{
					"urn":     e.Snapshot.URN,
					"aspects": e.Snapshot.Aspects,
				},
			},
		},
	}
	if e.SystemMetadata != nil {
		body["systemMetadata"] = e.SystemMetadata
	}
	return json.Marshal(body)
}

// NewSystemMetadata builds system metadata for the given job at time now.
func NewSystemMetadata(jobID string, now time.Time) *SystemMetadata {
	return &SystemMetadata{
		LastObserved: now.UnixMilli(),
		RunID:        jobID,
	}
}

// DatasetEvent builds a dataset change event with the standard aspect order:
// Status first, then properties, then any extra aspects.
func DatasetEvent(urn string, props PropertiesValue, extra ...Aspect) ChangeEvent {
	aspects := []Aspect{
		{Name: AspectStatus, Value: StatusValue{Removed: false}},
		{Name: AspectDatasetProperties, Value: props},
	}
	aspects = append(aspects, extra...)

	return ChangeEvent{
		Snapshot: Snapshot{
			Class:   SnapshotDataset,
			URN:     urn,
			Aspects: aspects,
		},
	}
}

// MLModelEvent builds an ML model change event.
func MLModelEvent(urn string, props PropertiesValue, extra ...Aspect) ChangeEvent {
	aspects := []Aspect{
		{Name: AspectStatus, Value: StatusValue{Removed: false}},
		{Name: AspectMLModelProperties, Value: props},
	}
	aspects = append(aspects, extra...)

	return ChangeEvent{
		Snapshot: Snapshot{
			Class:   SnapshotMLModel,
			URN:     urn,
			Aspects: aspects,
		},
	}
}

// LineageEvent builds a change event carrying a single upstream lineage edge
// from source to target.
func LineageEvent(sourceURN, targetURN, lineageType string, now time.Time) ChangeEvent {
	class := SnapshotDataset
	if IsMLModelURN(sourceURN) {
		class = SnapshotMLModel
	}

	return ChangeEvent{
		Snapshot: Snapshot{
			Class: class,
			URN:   sourceURN,
			Aspects: []Aspect{
				{
					Name: AspectUpstreamLineage,
					Value: UpstreamLineageValue{
						Upstreams: []UpstreamRef{
							{
								AuditStamp: AuditStamp{
									Time:  now.UnixMilli(),
									Actor: "urn:li:corpuser:runlens",
								},
								Dataset: targetURN,
								Type:    lineageType,
							},
						},
					},
				},
			},
		},
	}
}
