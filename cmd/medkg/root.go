package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	medkg "github.com/yangmaomao2025-netizen/disease-knowledge-graph"
)

var (
	configPath string
	dbPath     string
	backend    string
	logLevel   string

	logCloser io.Closer
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:     "medkg",
	Short:   "Medical knowledge-graph triple extraction",
	Long:    "Extracts (head, relation, tail) triples from Chinese clinical text and maintains them in a SQLite or Neo4j knowledge graph.",
	Version: medkg.Version,

	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (yaml, json or toml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: <data_dir>/medkg.db)")
	RootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Graph store backend: sqlite or neo4j")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig() medkg.Config {
	cfg, err := medkg.LoadConfig(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if backend != "" {
		cfg.Store.Backend = backend
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		exitErr("config", err)
	}

	closer, err := medkg.SetupLogging(cfg.Log)
	if err != nil {
		exitErr("logging", err)
	}
	logCloser = closer
	return cfg
}

func openEngine(cmd *cobra.Command) *medkg.Engine {
	cfg := loadConfig()
	engine, err := medkg.New(cmd.Context(), cfg)
	if err != nil {
		exitErr("open engine", err)
	}
	return engine
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		exitErr("encode output", err)
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	if logCloser != nil {
		logCloser.Close()
	}
	os.Exit(1)
}
