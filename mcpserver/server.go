// Package mcpserver exposes triple extraction and graph queries as MCP
// tools for agent clients.
package mcpserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	medkg "github.com/yangmaomao2025-netizen/disease-knowledge-graph"
)

// New creates an MCP server with all tools registered.
func New(engine *medkg.Engine) *mcp.Server {
	t := &Tools{Engine: engine}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "medkg",
		Version: medkg.Version,
	}, nil)

	// Extraction
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "extract_triples",
		Description: "Extract medical entities, relations and (head, relation, tail) triples from one Chinese clinical text; optionally store the triples in the knowledge graph",
	}, t.ExtractTriples)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "extract_batch",
		Description: "Extract triples from several texts; results keep input order and failed texts carry an error",
	}, t.ExtractBatch)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "export_triples",
		Description: "Serialize triples as csv or jsonl",
	}, t.ExportTriples)

	// Knowledge graph
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_triple",
		Description: "Add one triple to the knowledge graph, creating missing entities",
	}, t.AddTriple)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "query_entity",
		Description: "List relationships within 1-3 hops of an entity, in either direction",
	}, t.QueryEntity)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "find_paths",
		Description: "Find up to 10 shortest paths (1-5 hops) between two entities",
	}, t.FindPaths)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "graph_statistics",
		Description: "Count entities and relationships in the knowledge graph by type",
	}, t.Statistics)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "similar_entities",
		Description: "Find stored entities whose names resemble a query name (SQLite backend only)",
	}, t.SimilarEntities)

	return srv
}
