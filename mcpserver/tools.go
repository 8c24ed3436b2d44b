package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	medkg "github.com/yangmaomao2025-netizen/disease-knowledge-graph"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/extraction"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/store"
)

// Tools holds the engine the tool handlers run against.
type Tools struct {
	Engine *medkg.Engine
}

// --- Input types ---

type ExtractTriplesInput struct {
	Text   string `json:"text" jsonschema:"Clinical text to analyse"`
	Source string `json:"source,omitempty" jsonschema:"Source label recorded on every triple (default: text)"`
	Store  bool   `json:"store,omitempty" jsonschema:"Also add the triples to the knowledge graph"`
}

type ExtractBatchInput struct {
	Texts  []string `json:"texts" jsonschema:"Texts to analyse"`
	Source string   `json:"source,omitempty" jsonschema:"Source label recorded on every triple"`
}

type ExportTriplesInput struct {
	Triples []extraction.Triple `json:"triples" jsonschema:"Triples to serialize"`
	Format  string              `json:"format,omitempty" jsonschema:"csv (default) or jsonl"`
}

type AddTripleInput struct {
	Head       string         `json:"head" jsonschema:"Head entity name"`
	HeadType   string         `json:"head_type" jsonschema:"Head entity type, e.g. DISEASE"`
	Relation   string         `json:"relation" jsonschema:"Relation type, e.g. TREATED_BY"`
	Tail       string         `json:"tail" jsonschema:"Tail entity name"`
	TailType   string         `json:"tail_type" jsonschema:"Tail entity type, e.g. DRUG"`
	Properties map[string]any `json:"properties,omitempty" jsonschema:"Relationship properties"`
}

type QueryEntityInput struct {
	Name  string `json:"name" jsonschema:"Entity name"`
	Depth int    `json:"depth,omitempty" jsonschema:"Hops to follow, 1-3 (default 1)"`
}

type FindPathsInput struct {
	Start    string `json:"start" jsonschema:"Start entity name"`
	End      string `json:"end" jsonschema:"End entity name"`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"Maximum path length, 1-5 (default 3)"`
}

type SimilarEntitiesInput struct {
	Name string `json:"name" jsonschema:"Name to compare against"`
	K    int    `json:"k,omitempty" jsonschema:"Number of results (default 5)"`
}

// --- Handlers ---

func (t *Tools) ExtractTriples(ctx context.Context, _ *mcp.CallToolRequest, input ExtractTriplesInput) (*mcp.CallToolResult, any, error) {
	res, err := t.Engine.Extract(ctx, input.Text, input.Source)
	if err != nil {
		return toolError("Extraction failed: %v", err), nil, nil
	}
	if !input.Store {
		return toolJSON(res)
	}
	n, err := t.Engine.StoreTriples(ctx, res.Triples)
	if err != nil {
		return toolError("Extracted %d triples but storing failed after %d: %v", len(res.Triples), n, err), nil, nil
	}
	return toolJSON(map[string]any{"result": res, "stored": n})
}

func (t *Tools) ExtractBatch(ctx context.Context, _ *mcp.CallToolRequest, input ExtractBatchInput) (*mcp.CallToolResult, any, error) {
	if len(input.Texts) == 0 {
		return toolError("texts is required"), nil, nil
	}
	return toolJSON(t.Engine.ExtractBatch(ctx, input.Texts, input.Source))
}

func (t *Tools) ExportTriples(_ context.Context, _ *mcp.CallToolRequest, input ExportTriplesInput) (*mcp.CallToolResult, any, error) {
	format := input.Format
	if format == "" {
		format = extraction.FormatCSV
	}
	out, err := t.Engine.Export(input.Triples, format)
	if err != nil {
		return toolError("Export failed: %v", err), nil, nil
	}
	return toolText(out), nil, nil
}

func (t *Tools) AddTriple(ctx context.Context, _ *mcp.CallToolRequest, input AddTripleInput) (*mcp.CallToolResult, any, error) {
	in := store.TripleInput{
		Head:       input.Head,
		HeadType:   input.HeadType,
		Relation:   input.Relation,
		Tail:       input.Tail,
		TailType:   input.TailType,
		Properties: input.Properties,
	}
	if err := t.Engine.AddTriple(ctx, in); err != nil {
		return toolError("Failed to add triple: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Added %s -[%s]-> %s", input.Head, input.Relation, input.Tail)), nil, nil
}

func (t *Tools) QueryEntity(ctx context.Context, _ *mcp.CallToolRequest, input QueryEntityInput) (*mcp.CallToolResult, any, error) {
	depth := input.Depth
	if depth == 0 {
		depth = 1
	}
	edges, err := t.Engine.Query(ctx, input.Name, depth)
	if err != nil {
		return toolError("Query failed: %v", err), nil, nil
	}
	return toolJSON(map[string]any{"entity": input.Name, "count": len(edges), "edges": edges})
}

func (t *Tools) FindPaths(ctx context.Context, _ *mcp.CallToolRequest, input FindPathsInput) (*mcp.CallToolResult, any, error) {
	maxDepth := input.MaxDepth
	if maxDepth == 0 {
		maxDepth = 3
	}
	paths, err := t.Engine.Path(ctx, input.Start, input.End, maxDepth)
	if err != nil {
		return toolError("Path search failed: %v", err), nil, nil
	}
	return toolJSON(map[string]any{"start": input.Start, "end": input.End, "path_count": len(paths), "paths": paths})
}

func (t *Tools) Statistics(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	stats, err := t.Engine.Statistics(ctx)
	if err != nil {
		return toolError("Statistics failed: %v", err), nil, nil
	}
	return toolJSON(stats)
}

func (t *Tools) SimilarEntities(ctx context.Context, _ *mcp.CallToolRequest, input SimilarEntitiesInput) (*mcp.CallToolResult, any, error) {
	k := input.K
	if k == 0 {
		k = 5
	}
	res, err := t.Engine.Similar(ctx, input.Name, k)
	if err != nil {
		return toolError("Similarity search failed: %v", err), nil, nil
	}
	return toolJSON(res)
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return toolText(string(data)), nil, nil
}
