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

// Package registry performs one-time catalog setup: registering the source
// platforms and the custom LLM entity type definitions embedded in this
// binary. Registration is an upsert, so re-running setup is safe.
package registry

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/runlens/runlens/pkg/metadata"
)

//go:embed types/*.json
var typeFS embed.FS

// EventSink accepts pre-built change events. Both the live and dry-run
// emitters satisfy it.
type EventSink interface {
	EmitEvent(ctx context.Context, event metadata.ChangeEvent) error
}

// Platform describes a source platform to register with the catalog.
type Platform struct {
	Name        string
	DisplayName string
	Type        string
	LogoURL     string
	Info        string
}

// SupportedPlatforms lists the platforms this pipeline ingests from.
var SupportedPlatforms = []Platform{
	{
		Name:        "LangChain",
		DisplayName: "LangChain",
		Type:        "OTHERS",
		Info:        "LangChain Framework for LLM Applications",
	},
	{
		Name:        "LangSmith",
		DisplayName: "LangSmith",
		Type:        "OTHERS",
		Info:        "LangSmith Observability Platform",
	},
	{
		Name:        "llm",
		DisplayName: "LLM",
		Type:        "OTHERS",
		Info:        "LLM runs, chains, and models",
	},
}

// TypeDef is an embedded custom entity type definition.
type TypeDef struct {
	EntityType  string            `json:"entityType"`
	AspectSpecs []json.RawMessage `json:"aspectSpecs"`
}

// Registry registers platforms and types against a sink.
type Registry struct {
	sink   EventSink
	logger *slog.Logger
}

// New creates a Registry.
func New(sink EventSink, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{sink: sink, logger: logger.With("component", "registry")}
}

// RegisterPlatforms registers every supported platform.
func (r *Registry) RegisterPlatforms(ctx context.Context) error {
	for _, p := range SupportedPlatforms {
		if err := r.sink.EmitEvent(ctx, PlatformEvent(p)); err != nil {
			return fmt.Errorf("registering platform %s: %w", p.Name, err)
		}
		r.logger.Info("registered platform", "platform", p.Name)
	}
	return nil
}

// RegisterTypes registers every embedded type definition.
func (r *Registry) RegisterTypes(ctx context.Context) error {
	defs, err := LoadTypes()
	if err != nil {
		return err
	}

	for _, def := range defs {
		if err := r.sink.EmitEvent(ctx, TypeEvent(def)); err != nil {
			return fmt.Errorf("registering type %s: %w", def.EntityType, err)
		}
		r.logger.Info("registered type", "entity_type", def.EntityType)
	}
	return nil
}

// LoadTypes parses the embedded type definitions.
func LoadTypes() ([]TypeDef, error) {
	entries, err := typeFS.ReadDir("types")
	if err != nil {
		return nil, fmt.Errorf("reading embedded types: %w", err)
	}

	defs := make([]TypeDef, 0, len(entries))
	for _, entry := range entries {
		data, err := typeFS.ReadFile("types/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		var def TypeDef
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}
		if def.EntityType == "" {
			return nil, fmt.Errorf("type definition %s has no entityType", entry.Name())
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// PlatformEvent builds the platform registration change event.
func PlatformEvent(p Platform) metadata.ChangeEvent {
	platformType := p.Type
	if platformType == "" {
		platformType = "OTHERS"
	}

	return metadata.ChangeEvent{
		Snapshot: metadata.Snapshot{
			Class: metadata.SnapshotDataPlatform,
			URN:   metadata.DataPlatformURN(strings.ToLower(p.Name)),
			Aspects: []metadata.Aspect{
				{
					Name: metadata.AspectDataPlatformInfo,
					Value: metadata.DataPlatformInfoValue{
						Name:                 p.Name,
						DisplayName:          p.DisplayName,
						Type:                 platformType,
						DatasetNameDelimiter: "/",
						LogoURL:              p.LogoURL,
						Info:                 p.Info,
					},
				},
			},
		},
	}
}

// TypeEvent builds the change event registering a custom entity type. Type
// definitions live as datasets on the catalog's own platform, with the
// aspect schema carried in custom properties.
func TypeEvent(def TypeDef) metadata.ChangeEvent {
	schema, _ := json.Marshal(def.AspectSpecs)

	return metadata.DatasetEvent(
		metadata.DatasetURN("datahub", def.EntityType, metadata.EnvProd),
		metadata.PropertiesValue{
			Name:        def.EntityType,
			Description: fmt.Sprintf("Custom type for %s", def.EntityType),
			CustomProperties: map[string]string{
				"entityType": def.EntityType,
				"schema":     string(schema),
			},
		},
	)
}
