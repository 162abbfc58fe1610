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

// Package emit defines the metadata sink interface and the change-event
// construction shared by all sinks. Sinks translate normalized run, model,
// and chain records into catalog change events; where those events land
// (catalog service, local files, console) is the sink's concern.
package emit

import (
	"context"

	"github.com/runlens/runlens/pkg/metadata"
)

// Emitter is a metadata sink. Emit methods return the URN assigned to the
// entity. Emission is idempotent per URN: re-emitting the same entity is a
// catalog upsert, never an error.
type Emitter interface {
	// EmitRun emits one run as a dataset entity.
	EmitRun(ctx context.Context, run *metadata.Run) (string, error)

	// EmitModel emits one model as an ML model entity.
	EmitModel(ctx context.Context, model *metadata.Model) (string, error)

	// EmitChain emits one chain as a dataset entity.
	EmitChain(ctx context.Context, chain *metadata.Chain) (string, error)

	// EmitLineage emits a directed lineage edge between two entities.
	EmitLineage(ctx context.Context, edge metadata.LineageEdge) error

	// Flush forces any buffered events out to the sink.
	Flush(ctx context.Context) error

	// Close flushes and releases sink resources.
	Close() error
}
