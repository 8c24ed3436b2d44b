package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/server"
)

var serveAddr string

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		Run:   runServe,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	engine := openEngine(cmd)
	defer engine.Close()

	cfg := engine.Config().Server
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	slog.Info("medkg: starting", "version", RootCmd.Version, "backend", engine.GraphStore().Backend(),
		"tagger", engine.HasTagger())

	if err := server.New(engine, cfg).Run(cmd.Context()); err != nil {
		exitErr("server", err)
	}
}
