package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/mcpserver"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "mcp",
		Short: "Serve the extraction and graph tools over MCP stdio",
		Long:  "Runs an MCP server on stdin/stdout. Logs go to stderr or the configured log file, never stdout.",
		Args:  cobra.NoArgs,
		Run:   runMCP,
	})
}

func runMCP(cmd *cobra.Command, args []string) {
	engine := openEngine(cmd)
	defer engine.Close()

	if err := mcpserver.New(engine).Run(cmd.Context(), &mcp.StdioTransport{}); err != nil {
		if cmd.Context().Err() != nil {
			return
		}
		exitErr("mcp server", err)
	}
}
