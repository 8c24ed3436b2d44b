package medkg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.ResolveDBPath(); got != filepath.Join("data", "medkg.db") {
		t.Errorf("ResolveDBPath = %q", got)
	}
	cfg.Store.DBPath = "/tmp/kg.db"
	if got := cfg.ResolveDBPath(); got != "/tmp/kg.db" {
		t.Errorf("explicit db path ignored: %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"neo4j without uri", func(c *Config) { c.Store.Backend = "neo4j"; c.Store.Neo4j.URI = "" }},
		{"no passes", func(c *Config) { c.Extraction.UseRules = false; c.Extraction.UseModel = false }},
		{"zero concurrency", func(c *Config) { c.Extraction.Concurrency = 0 }},
		{"tagger without provider", func(c *Config) { c.Tagger.Enabled = true; c.Tagger.LLM.Provider = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	if cfg.Store.Backend != want.Store.Backend || cfg.Server.Addr != want.Server.Addr ||
		cfg.Extraction.Concurrency != want.Extraction.Concurrency || cfg.Server.WriteTimeout != want.Server.WriteTimeout {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medkg.yaml")
	yaml := `
data_dir: /var/lib/medkg
store:
  backend: neo4j
  neo4j:
    uri: bolt://graph:7687
    user: kg
extraction:
  concurrency: 8
  use_model: false
server:
  addr: ":9000"
  read_timeout: 10s
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DataDir != "/var/lib/medkg" || cfg.Store.Backend != "neo4j" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Store.Neo4j.URI != "bolt://graph:7687" || cfg.Store.Neo4j.User != "kg" {
		t.Errorf("neo4j = %+v", cfg.Store.Neo4j)
	}
	if cfg.Store.Neo4j.Password != "password" {
		t.Errorf("unset key lost its default: %q", cfg.Store.Neo4j.Password)
	}
	if cfg.Extraction.Concurrency != 8 || cfg.Extraction.UseModel || !cfg.Extraction.UseRules {
		t.Errorf("extraction = %+v", cfg.Extraction)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("MEDKG_STORE_BACKEND", "neo4j")
	t.Setenv("NEO4J_URI", "bolt://env-host:7687")
	t.Setenv("NEO4J_PASSWORD", "s3cret")
	t.Setenv("MEDKG_EXTRACTION_CONCURRENCY", "2")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Backend != "neo4j" || cfg.Extraction.Concurrency != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Store.Neo4j.URI != "bolt://env-host:7687" || cfg.Store.Neo4j.Password != "s3cret" {
		t.Errorf("neo4j = %+v", cfg.Store.Neo4j)
	}
}

func TestLoadConfigAPIKeyAliases(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"openai fallback", map[string]string{"OPENAI_API_KEY": "sk-openai"}, "sk-openai"},
		{"anthropic before openai", map[string]string{"ANTHROPIC_API_KEY": "sk-ant", "OPENAI_API_KEY": "sk-openai"}, "sk-ant"},
		{"medkg name wins", map[string]string{"MEDKG_TAGGER_LLM_API_KEY": "sk-medkg", "OPENAI_API_KEY": "sk-openai"}, "sk-medkg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, name := range []string{"MEDKG_TAGGER_LLM_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY"} {
				t.Setenv(name, tt.env[name])
			}
			cfg, err := LoadConfig("")
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if cfg.Tagger.LLM.APIKey != tt.want {
				t.Errorf("api key = %q, want %q", cfg.Tagger.LLM.APIKey, tt.want)
			}
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("store:\n  backend: mysql\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}
