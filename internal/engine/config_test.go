package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfigYAML(t *testing.T) {
	p := writeConfig(t, "config.yaml", `
session_root: /tmp/sessions
retrieval_k: 5
logging:
  level: debug
  format: text
`)
	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SessionRoot != "/tmp/sessions" || cfg.RetrievalK != 5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	// Defaults fill the gaps.
	if cfg.DataDir != "data" || cfg.MaxNodeVisits != 25 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	p := writeConfig(t, "config.yaml", "session_root: s\nmax_visits: 3\n")
	if _, err := LoadConfig(p); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadConfigJSON(t *testing.T) {
	p := writeConfig(t, "config.json", `{"data_dir": "d", "logging": {"level": "warn"}}`)
	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DataDir != "d" || cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigValidates(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad level", "logging:\n  level: loud\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"negative visits", "max_node_visits: -1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, "config.yaml", tc.body)
			if _, err := LoadConfig(p); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
