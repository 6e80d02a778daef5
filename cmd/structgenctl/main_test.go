package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cexll/structgen/pkg/config"
	"github.com/cexll/structgen/pkg/schema"
)

func testStreams() (ioStreams, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return ioStreams{out: out, err: errOut}, out, errOut
}

func TestRunCLIUnknownCommand(t *testing.T) {
	streams, _, _ := testStreams()
	err := runCLI(context.Background(), []string{"bogus"}, streams)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("err = %v, want unknown command", err)
	}
}

func TestRunCLIMissingCommand(t *testing.T) {
	streams, _, _ := testStreams()
	if err := runCLI(context.Background(), nil, streams); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestVersionCommand(t *testing.T) {
	streams, out, _ := testStreams()
	if err := runCLI(context.Background(), []string{"version"}, streams); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunRequiresPrompt(t *testing.T) {
	streams, _, _ := testStreams()
	err := runCLI(context.Background(), []string{"run"}, streams)
	if err == nil || !strings.Contains(err.Error(), "prompt") {
		t.Fatalf("err = %v, want prompt error", err)
	}
}

func TestToolsCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("provider: anthropic\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	streams, out, _ := testStreams()
	if err := runCLI(context.Background(), []string{"-config", path, "tools"}, streams); err != nil {
		t.Fatalf("tools: %v", err)
	}
	listing := out.String()
	if !strings.Contains(listing, "calculator") || !strings.Contains(listing, "fetch") {
		t.Fatalf("listing = %q", listing)
	}
}

func TestToolsCommandAllowlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "provider: anthropic\ntool_allowlist:\n  - calculator\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	streams, out, _ := testStreams()
	if err := runCLI(context.Background(), []string{"-config", path, "tools"}, streams); err != nil {
		t.Fatalf("tools: %v", err)
	}
	listing := out.String()
	if !strings.Contains(listing, "calculator") || strings.Contains(listing, "fetch") {
		t.Fatalf("listing = %q", listing)
	}
}

func TestLoadTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "person.json")
	body := `{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}

	target, err := loadTarget(path)
	if err != nil {
		t.Fatalf("load target: %v", err)
	}
	if target.Kind != schema.KindObject || target.Name != "person" {
		t.Fatalf("target = %+v", target)
	}

	if target, err := loadTarget(""); err != nil || target != nil {
		t.Fatalf("empty path should yield nil target, got %v, %v", target, err)
	}
}

func TestPrintDelta(t *testing.T) {
	out := &bytes.Buffer{}

	// First turn grows monotonically.
	printed := printDelta(out, "", "The capital")
	printed = printDelta(out, printed, "The capital is Paris.")
	if out.String() != "The capital is Paris." {
		t.Fatalf("output = %q", out.String())
	}

	// A tool turn restarts the text; the fresh document must print whole,
	// not diffed against the previous turn.
	printed = printDelta(out, printed, "Paris has")
	printed = printDelta(out, printed, "Paris has 2.1M people.")
	if printed != "Paris has 2.1M people." {
		t.Fatalf("printed = %q", printed)
	}
	want := "The capital is Paris.\nParis has 2.1M people."
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
}

func TestBackendFor(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	cfg := config.Default()
	backend, err := backendFor(cfg)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	if backend == nil {
		t.Fatal("nil backend")
	}

	cfg.Provider = "weird"
	cfg.APIKeyEnv = "ANTHROPIC_API_KEY"
	if _, err := backendFor(cfg); !errors.Is(err, config.ErrUnknownProvider) {
		t.Fatalf("err = %v, want ErrUnknownProvider", err)
	}
}
