package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the operator-facing runtime configuration. Loaded strictly:
// unknown keys are an error.
type Config struct {
	SessionRoot string `yaml:"session_root" json:"session_root"`
	DataDir     string `yaml:"data_dir" json:"data_dir"`
	CorpusPath  string `yaml:"corpus_path" json:"corpus_path"`
	PromptsPath string `yaml:"prompts_path" json:"prompts_path"`

	// MaxNodeVisits bounds visits to any single stage within one run.
	// The dispatch budget len(plan)+1 is always enforced on top of it.
	MaxNodeVisits int `yaml:"max_node_visits" json:"max_node_visits"`

	// RetrievalK is how many similar tickets and schema matches the
	// retrieval stage asks the lookup backends for.
	RetrievalK int `yaml:"retrieval_k" json:"retrieval_k"`

	// ArtifactExcludeGlobs names session artifacts that must not be
	// persisted (doublestar glob syntax, matched against file names).
	ArtifactExcludeGlobs []string `yaml:"artifact_exclude_globs" json:"artifact_exclude_globs"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// LoadConfig reads a config file, YAML or JSON by extension, with strict
// field checking, then applies defaults and validates.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultConfig is the configuration used when no file is given.
func DefaultConfig() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.SessionRoot == "" {
		c.SessionRoot = "sessions"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.MaxNodeVisits == 0 {
		c.MaxNodeVisits = 25
	}
	if c.RetrievalK == 0 {
		c.RetrievalK = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *Config) validate() error {
	if c.MaxNodeVisits < 1 {
		return fmt.Errorf("max_node_visits must be >= 1, got %d", c.MaxNodeVisits)
	}
	if c.RetrievalK < 1 {
		return fmt.Errorf("retrieval_k must be >= 1, got %d", c.RetrievalK)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}
