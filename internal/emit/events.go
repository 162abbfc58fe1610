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

package emit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/runlens/runlens/pkg/metadata"
)

// RunEvent builds the catalog change event for a run. Custom properties are
// flattened to strings; structured values are JSON-encoded.
func RunEvent(run *metadata.Run, jobID string, now time.Time) metadata.ChangeEvent {
	props := map[string]string{
		"run_id":     run.ID,
		"start_time": run.StartTime.UTC().Format(time.RFC3339),
		"status":     run.Status,
	}
	if run.Name != "" {
		props["name"] = run.Name
	}
	if run.RunType != "" {
		props["run_type"] = run.RunType
	}
	if !run.EndTime.IsZero() {
		props["end_time"] = run.EndTime.UTC().Format(time.RFC3339)
	}
	if run.Error != "" {
		props["error"] = run.Error
	}
	if run.ParentID != "" {
		props["parent_id"] = run.ParentID
	}
	if len(run.ChildIDs) > 0 {
		props["child_run_ids"] = strings.Join(run.ChildIDs, ",")
	}
	if len(run.Tags) > 0 {
		props["tags"] = strings.Join(run.Tags, ",")
	}
	if len(run.Inputs) > 0 {
		props["inputs"] = stringify(run.Inputs)
	}
	if len(run.Outputs) > 0 {
		props["outputs"] = stringify(run.Outputs)
	}
	if !run.Usage.IsZero() {
		props["token_usage"] = stringify(run.Usage)
	}
	if d := run.Duration(); d > 0 {
		props["latency_seconds"] = fmt.Sprintf("%.3f", d.Seconds())
	}
	if run.Cost > 0 {
		props["cost_usd"] = fmt.Sprintf("%.6f", run.Cost)
	}
	if run.Model != nil {
		props["model"] = run.Model.Name
	}
	if len(run.Feedback) > 0 {
		props["feedback_stats"] = stringify(run.Feedback)
	}

	event := metadata.DatasetEvent(metadata.RunURN(run.ID), metadata.PropertiesValue{
		Name:             run.ID,
		Description:      fmt.Sprintf("LLM Run %s", run.ID),
		CustomProperties: props,
	})
	event.SystemMetadata = metadata.NewSystemMetadata(jobID, now)
	return event
}

// ModelEvent builds the catalog change event for a model.
func ModelEvent(model *metadata.Model, jobID string, now time.Time) metadata.ChangeEvent {
	props := map[string]string{
		"provider":     model.Provider,
		"model_family": model.Family,
	}
	if len(model.Capabilities) > 0 {
		props["capabilities"] = strings.Join(model.Capabilities, ",")
	}
	if len(model.Parameters) > 0 {
		props["parameters"] = stringify(model.Parameters)
	}

	urn := metadata.ModelURN(model.Provider, model.Name)
	event := metadata.MLModelEvent(urn, metadata.PropertiesValue{
		Name:             model.Name,
		Description:      fmt.Sprintf("%s %s Language Model", model.Provider, model.Name),
		CustomProperties: props,
	})
	event.SystemMetadata = metadata.NewSystemMetadata(jobID, now)
	return event
}

// ChainEvent builds the catalog change event for a chain.
func ChainEvent(chain *metadata.Chain, jobID string, now time.Time) metadata.ChangeEvent {
	props := map[string]string{
		"chain_id": chain.ID,
		"name":     chain.Name,
	}
	if len(chain.Components) > 0 {
		props["components"] = strings.Join(chain.Components, ",")
	}
	if len(chain.Config) > 0 {
		props["config"] = stringify(chain.Config)
	}

	event := metadata.DatasetEvent(metadata.ChainURN(chain.ID), metadata.PropertiesValue{
		Name:             chain.Name,
		Description:      fmt.Sprintf("LLM Chain %s", chain.Name),
		CustomProperties: props,
	})
	event.SystemMetadata = metadata.NewSystemMetadata(jobID, now)
	return event
}

// stringify flattens a structured value into the string form catalog custom
// properties require.
func stringify(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
