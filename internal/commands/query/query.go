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

// Package query implements the query command: searching ingested run
// metadata back out of the catalog.
package query

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runlens/runlens/internal/catalog"
	"github.com/runlens/runlens/internal/commands/shared"
)

var (
	flagURN    string
	flagSearch string
	flagCount  int
	flagStart  int
)

// NewCommand creates the query command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query ingested metadata from the catalog",
		Long: `Search the catalog for ingested LLM runs, or look up one entity by
URN with its lineage.

Examples:
  runlens query
  runlens query --search "gpt-4"
  runlens query --urn "urn:li:dataset:(urn:li:dataPlatform:llm,runs/<id>,PROD)"`,
		RunE: runQuery,
	}

	cmd.Flags().StringVar(&flagURN, "urn", "", "Look up one entity by URN")
	cmd.Flags().StringVar(&flagSearch, "search", "", "Search string (default: all llm-platform runs)")
	cmd.Flags().IntVar(&flagCount, "count", 10, "Results per page")
	cmd.Flags().IntVar(&flagStart, "start", 0, "Result offset")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	logger := shared.NewLogger()

	cfg, err := shared.LoadConfig(false, logger)
	if err != nil {
		return err
	}

	client, err := catalog.New(catalog.Options{
		GMSURL:  cfg.Catalog.GMSURL,
		Token:   cfg.Catalog.Token,
		Timeout: cfg.Catalog.Timeout,
	}, logger)
	if err != nil {
		return shared.NewCatalogError("failed to create catalog client", err)
	}

	ctx := cmd.Context()

	if flagURN != "" {
		entity, err := client.GetEntity(ctx, flagURN)
		if err != nil {
			return shared.NewCatalogError("lookup failed", err)
		}
		return printEntity(cmd, entity)
	}

	opts := catalog.SearchOptions{Start: flagStart, Count: flagCount}
	var result *catalog.SearchResult
	if flagSearch != "" {
		result, err = client.Search(ctx, flagSearch, opts)
	} else {
		result, err = client.SearchRuns(ctx, opts)
	}
	if err != nil {
		return shared.NewCatalogError("search failed", err)
	}
	return printResult(cmd, result)
}

func printEntity(cmd *cobra.Command, entity *catalog.Entity) error {
	if shared.GetJSON() {
		return printJSON(cmd, entity)
	}

	cmd.Printf("%s\n", entity.URN)
	if entity.Name != "" {
		cmd.Printf("  name: %s\n", entity.Name)
	}
	if entity.Properties.Description != "" {
		cmd.Printf("  description: %s\n", entity.Properties.Description)
	}
	for _, prop := range entity.Properties.CustomProperties {
		cmd.Printf("  %s: %s\n", prop.Key, prop.Value)
	}
	for _, rel := range entity.Relationships.Relationships {
		cmd.Printf("  %s -> %s\n", rel.Type, rel.Entity.URN)
	}
	return nil
}

func printResult(cmd *cobra.Command, result *catalog.SearchResult) error {
	if shared.GetJSON() {
		return printJSON(cmd, result)
	}

	cmd.Printf("%d entities (%d total)\n", len(result.Entities), result.Total)
	for _, entity := range result.Entities {
		name := entity.Name
		if name == "" {
			name = entity.URN
		}
		cmd.Printf("  %s", name)
		if status := entity.Property("status"); status != "" {
			cmd.Printf("  [%s]", status)
		}
		cmd.Println()
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
