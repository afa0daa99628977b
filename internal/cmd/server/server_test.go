package server

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.DBPath != "mysterium.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{
		"-port", "9001",
		"-db", "/tmp/games.db",
		"-workflow-url", "https://ai.example.test",
		"-workflow-key", "secret",
	})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.Port)
	}
	if cfg.DBPath != "/tmp/games.db" {
		t.Fatalf("expected db override, got %q", cfg.DBPath)
	}
	if cfg.WorkflowURL != "https://ai.example.test" {
		t.Fatalf("expected workflow url override, got %q", cfg.WorkflowURL)
	}
	if cfg.WorkflowKey != "secret" {
		t.Fatalf("expected workflow key override, got %q", cfg.WorkflowKey)
	}
}
