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

package catalog

import (
	"context"

	"github.com/runlens/runlens/pkg/errors"
	"github.com/runlens/runlens/pkg/metadata"
)

// Property is one key/value custom property on a catalog entity.
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Relationship is one outgoing lineage edge from an entity.
type Relationship struct {
	Type   string `json:"type"`
	Entity struct {
		URN  string `json:"urn"`
		Type string `json:"type"`
	} `json:"entity"`
}

// Entity is a catalog entity as returned by search and lookup queries.
type Entity struct {
	URN        string `json:"urn"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	Properties struct {
		Description      string     `json:"description"`
		CustomProperties []Property `json:"customProperties"`
	} `json:"properties"`
	Relationships struct {
		Total         int            `json:"total"`
		Relationships []Relationship `json:"relationships"`
	} `json:"relationships"`
}

// Property returns the named custom property value, or "".
func (e *Entity) Property(key string) string {
	for _, p := range e.Properties.CustomProperties {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// SearchResult is a page of entities plus the total match count.
type SearchResult struct {
	Total    int
	Entities []Entity
}

const searchQuery = `
query searchDatasets($query: String!, $start: Int!, $count: Int!) {
    search(input: {type: DATASET, query: $query, start: $start, count: $count}) {
        total
        searchResults {
            entity {
                urn
                type
                ... on Dataset {
                    name
                    properties {
                        description
                        customProperties { key value }
                    }
                    relationships(input: {
                        types: ["RunsOn", "Uses", "PartOf"],
                        direction: OUTGOING,
                        start: 0,
                        count: 10
                    }) {
                        total
                        relationships {
                            type
                            entity { urn type }
                        }
                    }
                }
            }
        }
    }
}`

// SearchOptions paginates a catalog search.
type SearchOptions struct {
	Start int
	Count int
}

// SearchRuns finds ingested run datasets on the llm platform.
func (c *Client) SearchRuns(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	return c.search(ctx, "platform:"+metadata.PlatformLLM, opts)
}

// Search finds datasets matching an arbitrary search string.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	return c.search(ctx, query, opts)
}

func (c *Client) search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	if opts.Count <= 0 {
		opts.Count = defaultPageSize
	}

	var payload struct {
		Search struct {
			Total         int `json:"total"`
			SearchResults []struct {
				Entity Entity `json:"entity"`
			} `json:"searchResults"`
		} `json:"search"`
	}
	err := c.Query(ctx, searchQuery, map[string]any{
		"query": query,
		"start": opts.Start,
		"count": opts.Count,
	}, &payload)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Total: payload.Search.Total}
	for _, sr := range payload.Search.SearchResults {
		result.Entities = append(result.Entities, sr.Entity)
	}
	c.logger.Debug("search complete", "query", query, "total", result.Total)
	return result, nil
}

const entityQuery = `
query getDataset($urn: String!) {
    dataset(urn: $urn) {
        urn
        name
        properties {
            description
            customProperties { key value }
        }
        relationships(input: {
            types: ["RunsOn", "Uses", "PartOf"],
            direction: OUTGOING,
            start: 0,
            count: 10
        }) {
            total
            relationships {
                type
                entity { urn type }
            }
        }
    }
}`

// GetEntity fetches one dataset entity by URN, including its outgoing
// lineage edges.
func (c *Client) GetEntity(ctx context.Context, urn string) (*Entity, error) {
	var payload struct {
		Dataset *Entity `json:"dataset"`
	}
	if err := c.Query(ctx, entityQuery, map[string]any{"urn": urn}, &payload); err != nil {
		return nil, err
	}
	if payload.Dataset == nil || payload.Dataset.URN == "" {
		return nil, &errors.NotFoundError{Resource: "dataset", ID: urn}
	}
	return payload.Dataset, nil
}
