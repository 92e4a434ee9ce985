package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Http.Port != 8080 {
		t.Fatalf("expected default port, got %d", cfg.Http.Port)
	}
	if cfg.ML.Seed != 42 || cfg.ML.TestRatio != 0.2 {
		t.Fatalf("unexpected ml defaults: %+v", cfg.ML)
	}
	if cfg.ML.Limits.MaxNeighbors != 20 {
		t.Fatalf("expected max neighbors 20, got %d", cfg.ML.Limits.MaxNeighbors)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
database:
  path: /tmp/x.db
http:
  port: 9000
  timeout: 5s
ml:
  test_ratio: 3
  limits:
    max_rows: 10
    max_neighbors: 7
    default_neighbors: 9
`)
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("HTTP_PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Http.Port != 9100 {
		t.Errorf("env override ignored: %d", cfg.Http.Port)
	}
	if cfg.Http.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Http.Timeout)
	}
	if cfg.Database.Path != "/tmp/x.db" {
		t.Errorf("db path = %s", cfg.Database.Path)
	}
	if cfg.ML.TestRatio != 0.2 {
		t.Errorf("invalid test ratio not normalized: %v", cfg.ML.TestRatio)
	}
	if cfg.ML.Limits.MaxRows != 10 || cfg.ML.Limits.MaxNeighbors != 7 {
		t.Errorf("limits = %+v", cfg.ML.Limits)
	}
	if cfg.ML.Limits.DefaultNeighbors != 5 {
		t.Errorf("default neighbors above max should fall back, got %d", cfg.ML.Limits.DefaultNeighbors)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "http: [unclosed")
	t.Setenv("CONFIG_PATH", "")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWatchReloadsLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "ml:\n  limits:\n    max_rows: 10\n")

	changed := make(chan *Config, 4)
	w, err := Watch(path, zap.NewNop(), func(cfg *Config) { changed <- cfg })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	writeFile(t, path, "ml:\n  limits:\n    max_rows: 25\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if cfg.ML.Limits.MaxRows == 25 {
				return
			}
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}

func TestWatchFollowsConfigPathEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "ml:\n  limits:\n    max_rows: 10\n")
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load(DefaultPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Path != path {
		t.Fatalf("resolved path = %q, want %q", cfg.Path, path)
	}
	if cfg.ML.Limits.MaxRows != 10 {
		t.Fatalf("max rows = %d, want 10", cfg.ML.Limits.MaxRows)
	}

	changed := make(chan *Config, 4)
	w, err := Watch(cfg.Path, zap.NewNop(), func(c *Config) { changed <- c })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	// a sibling with the default name must not trigger a reload
	writeFile(t, filepath.Join(dir, DefaultPath), "ml:\n  limits:\n    max_rows: 99\n")
	writeFile(t, path, "ml:\n  limits:\n    max_rows: 30\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.ML.Limits.MaxRows == 99 {
				t.Fatal("reloaded from the wrong file")
			}
			if c.ML.Limits.MaxRows == 30 {
				return
			}
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}
