package medkg

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/llm"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/store"
)

// Config holds all configuration for the medkg engine and its front ends.
type Config struct {
	// DataDir holds the default database and the demo dataset output.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Store      StoreConfig      `json:"store" mapstructure:"store"`
	Lexicon    LexiconConfig    `json:"lexicon" mapstructure:"lexicon"`
	Tagger     TaggerConfig     `json:"tagger" mapstructure:"tagger"`
	Extraction ExtractionConfig `json:"extraction" mapstructure:"extraction"`
	Server     ServerConfig     `json:"server" mapstructure:"server"`
	Log        LogConfig        `json:"log" mapstructure:"log"`
}

// StoreConfig selects and configures the graph store backend.
type StoreConfig struct {
	Backend string            `json:"backend" mapstructure:"backend"` // sqlite, neo4j
	DBPath  string            `json:"db_path" mapstructure:"db_path"` // sqlite file; defaults to <data_dir>/medkg.db
	Neo4j   store.Neo4jConfig `json:"neo4j" mapstructure:"neo4j"`
}

// LexiconConfig points at an optional YAML lexicon replacing the built-in one.
type LexiconConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// TaggerConfig configures the optional model pass of the recognizer.
type TaggerConfig struct {
	Enabled bool       `json:"enabled" mapstructure:"enabled"`
	LLM     llm.Config `json:"llm" mapstructure:"llm"`
}

// ExtractionConfig controls the extraction pipeline.
type ExtractionConfig struct {
	UseRules    bool `json:"use_rules" mapstructure:"use_rules"`
	UseModel    bool `json:"use_model" mapstructure:"use_model"`
	Concurrency int  `json:"concurrency" mapstructure:"concurrency"` // batch worker pool size
	// MaxSentenceRunes caps segment length when splitting documents.
	MaxSentenceRunes int `json:"max_sentence_runes" mapstructure:"max_sentence_runes"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string        `json:"addr" mapstructure:"addr"`
	APIKey       string        `json:"api_key" mapstructure:"api_key"` // empty disables auth
	CORSOrigins  []string      `json:"cors_origins" mapstructure:"cors_origins"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	MaxBodyBytes string        `json:"max_body_bytes" mapstructure:"max_body_bytes"` // echo size string, e.g. "4M"
}

// LogConfig configures the process-wide slog handler.
type LogConfig struct {
	Level      string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format     string `json:"format" mapstructure:"format"` // text, json
	File       string `json:"file" mapstructure:"file"`     // empty logs to stderr
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
}

// DefaultConfig returns a Config for local use: SQLite under ./data,
// rule-only extraction, API on port 8000.
func DefaultConfig() Config {
	return Config{
		DataDir: "data",
		Store: StoreConfig{
			Backend: "sqlite",
			Neo4j:   store.DefaultNeo4jConfig(),
		},
		Tagger: TaggerConfig{
			LLM: llm.Config{
				Provider: "ollama",
				Model:    "qwen2.5:7b",
				BaseURL:  "http://localhost:11434",
			},
		},
		Extraction: ExtractionConfig{
			UseRules:         true,
			UseModel:         true,
			Concurrency:      4,
			MaxSentenceRunes: 512,
		},
		Server: ServerConfig{
			Addr:         ":8000",
			CORSOrigins:  []string{"*"},
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			MaxBodyBytes: "8M",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// ResolveDBPath returns the SQLite path, defaulting to <data_dir>/medkg.db.
func (c *Config) ResolveDBPath() string {
	if c.Store.DBPath != "" {
		return c.Store.DBPath
	}
	dir := c.DataDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "medkg.db")
}

// Validate checks the configuration before anything is opened.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite":
	case "neo4j":
		if c.Store.Neo4j.URI == "" {
			return fmt.Errorf("%w: store.neo4j.uri is required for the neo4j backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: store.backend %q (want sqlite or neo4j)", ErrInvalidConfig, c.Store.Backend)
	}
	if !c.Extraction.UseRules && !c.Extraction.UseModel {
		return fmt.Errorf("%w: extraction needs use_rules or use_model", ErrInvalidConfig)
	}
	if c.Extraction.Concurrency < 1 {
		return fmt.Errorf("%w: extraction.concurrency %d must be at least 1", ErrInvalidConfig, c.Extraction.Concurrency)
	}
	if c.Tagger.Enabled && c.Tagger.LLM.Provider == "" {
		return fmt.Errorf("%w: tagger.llm.provider is required when the tagger is enabled", ErrInvalidConfig)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (want text or json)", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// envAliases binds config keys to environment variables beyond the
// MEDKG_ names AutomaticEnv derives. The first env name wins.
var envAliases = [][]string{
	{"store.neo4j.uri", "MEDKG_STORE_NEO4J_URI", "NEO4J_URI"},
	{"store.neo4j.user", "MEDKG_STORE_NEO4J_USER", "NEO4J_USER"},
	{"store.neo4j.password", "MEDKG_STORE_NEO4J_PASSWORD", "NEO4J_PASSWORD"},
	{"tagger.llm.api_key", "MEDKG_TAGGER_LLM_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY"},
}

// LoadConfig builds a Config from defaults, an optional config file and the
// environment. Environment variables use the MEDKG_ prefix with "." replaced
// by "_" (MEDKG_STORE_BACKEND); NEO4J_URI, NEO4J_USER and NEO4J_PASSWORD are
// honoured as well.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("MEDKG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range envAliases {
		if err := v.BindEnv(b...); err != nil {
			return Config{}, fmt.Errorf("binding env for %s: %w", b[0], err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		slog.Debug("config: loaded file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// appear in no config file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("data_dir", d.DataDir)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.db_path", d.Store.DBPath)
	v.SetDefault("store.neo4j.uri", d.Store.Neo4j.URI)
	v.SetDefault("store.neo4j.user", d.Store.Neo4j.User)
	v.SetDefault("store.neo4j.password", d.Store.Neo4j.Password)
	v.SetDefault("store.neo4j.database", d.Store.Neo4j.Database)

	v.SetDefault("lexicon.path", d.Lexicon.Path)

	v.SetDefault("tagger.enabled", d.Tagger.Enabled)
	v.SetDefault("tagger.llm.provider", d.Tagger.LLM.Provider)
	v.SetDefault("tagger.llm.model", d.Tagger.LLM.Model)
	v.SetDefault("tagger.llm.base_url", d.Tagger.LLM.BaseURL)
	v.SetDefault("tagger.llm.api_key", d.Tagger.LLM.APIKey)

	v.SetDefault("extraction.use_rules", d.Extraction.UseRules)
	v.SetDefault("extraction.use_model", d.Extraction.UseModel)
	v.SetDefault("extraction.concurrency", d.Extraction.Concurrency)
	v.SetDefault("extraction.max_sentence_runes", d.Extraction.MaxSentenceRunes)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}
