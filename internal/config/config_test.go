package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvConfig, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.Mode != ModeLocal {
		t.Errorf("Expected local mode, got %q", cfg.Backend.Mode)
	}
	if !cfg.Sync.DedupEvents || !cfg.Sync.RemoveOnDelete {
		t.Errorf("Expected dedup and remove_on_delete on by default, got %+v", cfg.Sync)
	}
	if cfg.Sync.PollInterval != 500*time.Millisecond {
		t.Errorf("Expected 500ms poll interval, got %s", cfg.Sync.PollInterval)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
[backend]
mode = "graphql"

[graphql]
endpoint = "https://api.example.com/graphql"
timeout = "5s"

[sync]
dedup_events = false
`)
	t.Setenv(EnvConfig, path)
	t.Setenv("RESTAURANT_AUTH_TOKEN", "tok")
	t.Setenv("RESTAURANT_SYNC_REMOVE_ON_DELETE", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.Mode != ModeGraphQL {
		t.Errorf("Expected graphql mode, got %q", cfg.Backend.Mode)
	}
	if cfg.GraphQL.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %s", cfg.GraphQL.Timeout)
	}
	if cfg.Auth.Token != "tok" {
		t.Errorf("Expected token from env, got %q", cfg.Auth.Token)
	}
	if cfg.Sync.DedupEvents {
		t.Errorf("Expected dedup_events=false from file")
	}
	if cfg.Sync.RemoveOnDelete {
		t.Errorf("Expected remove_on_delete=false from env")
	}
	if got := cfg.GraphQL.RealtimeURL(); got != "wss://api.example.com/graphql" {
		t.Errorf("Expected derived realtime url, got %q", got)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "missing.toml"))

	if _, err := Load(); err == nil {
		t.Fatalf("Expected an error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]Config{
		"unknown mode":      {Backend: BackendConfig{Mode: "carrier-pigeon"}},
		"graphql no url":    {Backend: BackendConfig{Mode: ModeGraphQL}},
		"graphql bad realm": {Backend: BackendConfig{Mode: ModeGraphQL}, GraphQL: GraphQLConfig{Endpoint: "https://x", RealtimeEndpoint: "https://x"}},
		"local no path":     {Backend: BackendConfig{Mode: ModeLocal}, Sync: SyncConfig{PollInterval: time.Second}},
		"local no interval": {Backend: BackendConfig{Mode: ModeLocal}, Database: DatabaseConfig{Path: "x.db"}},
	}
	for name, cfg := range cases {
		if err := Validate(cfg); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	ok := Config{Backend: BackendConfig{Mode: ModeGraphQL}, GraphQL: GraphQLConfig{Endpoint: "https://x/graphql", RealtimeEndpoint: "wss://x/graphql"}}
	if err := Validate(ok); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}
