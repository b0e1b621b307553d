package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"restaurant_live/internal/auth"
	"restaurant_live/internal/gateway/gatewaytest"
	"restaurant_live/internal/logging"
	"restaurant_live/internal/model"
)

const testSecret = "dev-secret"

// setupConfig: points the CLI at a local backend in a temp dir.
func setupConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	cfg := `
[backend]
mode = "local"

[database]
path = "` + filepath.ToSlash(filepath.Join(dir, "restaurants.db")) + `"

[auth]
secret = "` + testSecret + `"

[sync]
poll_interval = "20ms"

[log]
level = "error"
`
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("could not write config: %v", err)
	}
	t.Setenv("HOME", dir)
	t.Setenv("RESTAURANT_CONFIG", path)
	t.Setenv("RESTAURANT_AUTH_TOKEN", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func login(t *testing.T) {
	t.Helper()
	token, err := execute(t, "token", "--subject", "user-1", "--username", "alice")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	t.Setenv("RESTAURANT_AUTH_TOKEN", strings.TrimSpace(token))
}

func TestTokenIsAccepted(t *testing.T) {
	setupConfig(t)

	out, err := execute(t, "token", "--subject", "user-1", "--username", "alice")

	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	id, err := auth.NewGate(strings.TrimSpace(out), testSecret).Authenticate()
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	assert.Equal(t, "user-1", id.Subject)
	assert.Equal(t, "alice", id.Username)
}

// TestCommandsRequireToken: nothing reaches the backend without an identity.
func TestCommandsRequireToken(t *testing.T) {
	setupConfig(t)

	_, err := execute(t, "list")

	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated, got %v", err)
	}
}

// TestAddListDelete: a full round trip through the local backend.
func TestAddListDelete(t *testing.T) {
	// 1. Given
	setupConfig(t)
	login(t)

	// 2. When
	out, err := execute(t, "add", "--name", "Le Central", "--description", "Bistro", "--city", "Lyon")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	assert.Equal(t, "Added Le Central\n", out)

	out, err = execute(t, "list", "-o", "json")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	// 3. Then
	var listed []model.Restaurant
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("could not decode list output %q: %v", out, err)
	}
	if len(listed) != 1 {
		t.Fatalf("Expected 1 restaurant, got %d", len(listed))
	}
	assert.Equal(t, "Le Central", listed[0].Name)
	assert.Equal(t, "Lyon", listed[0].City)
	if listed[0].ID == "" {
		t.Errorf("Expected an assigned id")
	}

	out, err = execute(t, "delete", listed[0].ID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	assert.Equal(t, "Deleted "+listed[0].ID+"\n", out)

	out, err = execute(t, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	assert.Equal(t, "No restaurants.\n", out)
}

func TestDeleteUnknownID(t *testing.T) {
	setupConfig(t)
	login(t)

	_, err := execute(t, "delete", "missing")

	if err == nil {
		t.Fatalf("Expected an error for an unknown id")
	}
}

func TestListRejectsUnknownFormat(t *testing.T) {
	setupConfig(t)
	login(t)

	_, err := execute(t, "list", "-o", "xml")

	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("Expected an unknown format error, got %v", err)
	}
}

func TestPrintRestaurants(t *testing.T) {
	restaurants := []model.Restaurant{
		{ID: "r1", Name: "Le Central", Description: "Bistro", City: "Lyon"},
		{ID: "r2", Name: "Chez Paul", Description: "Bouchon", City: "Lyon"},
	}

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := printRestaurants(&buf, formatYAML, restaurants); err != nil {
			t.Fatalf("printRestaurants failed: %v", err)
		}
		var decoded []model.Restaurant
		if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("could not decode yaml: %v", err)
		}
		assert.Equal(t, restaurants, decoded)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := printRestaurants(&buf, formatTable, restaurants); err != nil {
			t.Fatalf("printRestaurants failed: %v", err)
		}
		for _, want := range []string{"Name", "Le Central", "Chez Paul", "Bouchon"} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("Expected %q in table output", want)
			}
		}
	})
}

// TestWatchPrintsUntilStreamEnds: every event is printed in order; errors are only logged.
func TestWatchPrintsUntilStreamEnds(t *testing.T) {
	fake := gatewaytest.New()
	sub, err := fake.SubscribeOnCreate(context.Background())
	if err != nil {
		t.Fatalf("SubscribeOnCreate failed: %v", err)
	}
	stream := fake.Subscription(0)
	stream.Emit(model.Restaurant{ID: "r1", Name: "Le Central"})
	stream.Fail(errors.New("bad frame"))
	stream.Emit(model.Restaurant{ID: "r2", Name: "Chez Paul"})
	stream.Close()

	var buf bytes.Buffer
	err = watch(context.Background(), logging.NewTest(), sub, func(r model.Restaurant) error {
		return printRestaurant(&buf, formatJSON, r)
	})

	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	assert.Equal(t, true, strings.Contains(lines[0], `"id":"r1"`))
	assert.Equal(t, true, strings.Contains(lines[1], `"id":"r2"`))
}

// TestWatchLogsFinalError: an error queued just before the stream ends is still logged.
func TestWatchLogsFinalError(t *testing.T) {
	for i := 0; i < 50; i++ {
		fake := gatewaytest.New()
		sub, err := fake.SubscribeOnCreate(context.Background())
		if err != nil {
			t.Fatalf("SubscribeOnCreate failed: %v", err)
		}
		fake.Subscription(0).End(errors.New("connection reset"))

		var logs bytes.Buffer
		err = watch(context.Background(), zerolog.New(&logs), sub, func(model.Restaurant) error { return nil })

		if err != nil {
			t.Fatalf("watch failed: %v", err)
		}
		if !strings.Contains(logs.String(), "connection reset") {
			t.Fatalf("run %d: Expected the final stream error in the log, got %q", i, logs.String())
		}
	}
}

// TestListFailsWhenFetchFails: a list that could not be fetched exits with an error instead of
// printing an empty table.
func TestListFailsWhenFetchFails(t *testing.T) {
	// 1. Given
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	setupConfig(t)
	login(t)
	t.Setenv("RESTAURANT_BACKEND_MODE", "graphql")
	t.Setenv("RESTAURANT_GRAPHQL_ENDPOINT", srv.URL)

	// 2. When
	out, err := execute(t, "list")

	// 3. Then
	if err == nil {
		t.Fatalf("Expected an error, got output %q", out)
	}
	if !strings.Contains(err.Error(), "failed to load restaurants") {
		t.Errorf("Expected a load failure, got %v", err)
	}
	assert.Equal(t, "", out)
}
