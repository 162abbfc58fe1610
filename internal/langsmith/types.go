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

package langsmith

import "time"

// Session is a tracer project on the run-history platform.
type Session struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Run is the wire representation of a traced run. Fields the transformer
// does not recognize stay in Extra.
type Run struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	RunType          string         `json:"run_type"`
	StartTime        time.Time      `json:"start_time"`
	EndTime          time.Time      `json:"end_time,omitzero"`
	Status           string         `json:"status"`
	Error            string         `json:"error,omitempty"`
	Inputs           map[string]any `json:"inputs,omitempty"`
	Outputs          map[string]any `json:"outputs,omitempty"`
	ParentRunID      string         `json:"parent_run_id,omitempty"`
	ChildRunIDs      []string       `json:"child_run_ids,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	Serialized       map[string]any `json:"serialized,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
	Events           []any          `json:"events,omitempty"`
	PromptTokens     int            `json:"prompt_tokens,omitempty"`
	CompletionTokens int            `json:"completion_tokens,omitempty"`
	TotalTokens      int            `json:"total_tokens,omitempty"`
	TotalCost        float64        `json:"total_cost,omitempty"`
	FeedbackStats    map[string]any `json:"feedback_stats,omitempty"`
}

// queryRequest is the POST /runs/query body.
type queryRequest struct {
	Session   []string   `json:"session,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	IsRoot    *bool      `json:"is_root,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Cursor    string     `json:"cursor,omitempty"`
}

// queryResponse is the POST /runs/query response envelope.
type queryResponse struct {
	Runs    []Run `json:"runs"`
	Cursors struct {
		Next string `json:"next"`
	} `json:"cursors"`
}
