package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseHeader(t *testing.T) {
	header := parseHeader("\n# description: Keep it safe\n# Severity: warning\n# free text\npackage x\n# after: ignored\n")

	if header["description"] != "Keep it safe" {
		t.Errorf("Unexpected description: %q", header["description"])
	}
	if header["severity"] != "warning" {
		t.Errorf("Unexpected severity: %q", header["severity"])
	}
	if _, ok := header["after"]; ok {
		t.Error("Header parsing should stop at the first non-comment line")
	}
}

func TestLoadFromPaths(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	files := map[string]string{
		filepath.Join(dir, "b.rego"):    "package b\n",
		filepath.Join(nested, "a.rego"): "# severity: warning\npackage a\n",
		filepath.Join(dir, "notes.txt"): "not a policy",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}

	loader := NewLoader(zerolog.Nop())
	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(policies))
	}
	if policies[0].Name != "b" || policies[1].Name != "a" {
		t.Errorf("Unexpected order: %s, %s", policies[0].Name, policies[1].Name)
	}
	if policies[1].Severity != SeverityWarning {
		t.Errorf("Expected warning severity, got %s", policies[1].Severity)
	}
	if policies[0].Severity != SeverityError {
		t.Errorf("Expected default severity error, got %s", policies[0].Severity)
	}
}

func TestLoadFromPaths_Errors(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("Expected error for missing path")
	}

	path := filepath.Join(t.TempDir(), "bad.rego")
	if err := os.WriteFile(path, []byte("# severity: fatal\npackage bad\n"), 0o644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}
	if _, err := loader.LoadFromPaths(context.Background(), []string{path}); err == nil {
		t.Error("Expected error for invalid severity")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limit.rego")
	if err := os.WriteFile(path, []byte("package limit\n"), 0o644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loader := NewLoader(zerolog.Nop())
	loader.reloadDelay = 10 * time.Millisecond

	reloaded := make(chan []Policy, 4)
	err := loader.Watch(ctx, []string{dir}, func(policies []Policy) error {
		reloaded <- policies
		return nil
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer func() { _ = loader.StopWatching() }()

	if err := os.WriteFile(path, []byte("# severity: warning\npackage limit\n"), 0o644); err != nil {
		t.Fatalf("Failed to rewrite policy: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case policies := <-reloaded:
			if len(policies) == 1 && policies[0].Severity == SeverityWarning {
				return
			}
		case <-deadline:
			t.Fatal("Timed out waiting for reload")
		}
	}
}
