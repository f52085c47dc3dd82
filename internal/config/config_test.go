package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsSectionsAndEnvFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
server:
  port: "9090"
mongo:
  database: quizzes
content:
  ttl: 2m
attempts:
  max_retries: 5
  submit_grace: 30s
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MONGO_URI", "mongodb://env:27017")
	t.Setenv("MONGO_DATABASE", "ignored")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Attempts.MaxRetries != 5 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Mongo.URI != "mongodb://env:27017" {
		t.Fatalf("expected mongo uri from env, got %q", cfg.Mongo.URI)
	}
	if cfg.Mongo.Database != "quizzes" {
		t.Fatalf("file value should win over env, got %q", cfg.Mongo.Database)
	}
	if got := TTLDuration(cfg.Attempts.SubmitGrace, 0); got != 30*time.Second {
		t.Fatalf("expected 30s grace, got %s", got)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty, got %s", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid, got %s", got)
	}
}

func TestShippedConfigHasNoSubmitGrace(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	if err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
	if got := TTLDuration(cfg.Attempts.SubmitGrace, time.Hour); got != 0 {
		t.Fatalf("submissions past the deadline must expire by default, grace %s", got)
	}
}
