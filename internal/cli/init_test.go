package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/spec2tests/internal/emitter/tsemitter"
)

func TestInit_WritesSampleConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("init execute: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "spec2tests configuration") || !strings.Contains(s, "# uuidSchemas: [UUID]") {
		t.Fatalf("unexpected config contents: %s", s)
	}
}

func TestInit_SampleConfigKeysAreAccepted(t *testing.T) {
	t.Parallel()
	// Every commented key in the sample must be understood by generate.
	for _, line := range strings.Split(sampleConfigYAML, "\n") {
		if !strings.HasPrefix(line, "# ") || !strings.Contains(line, ": ") {
			continue
		}
		key := strings.TrimPrefix(line[:strings.Index(line, ":")], "# ")
		if strings.Contains(key, " ") {
			continue
		}
		cfg := defaultGenerateConfig()
		if err := applyConfigField(&cfg, normalizeKey(key), nil); err != nil {
			t.Fatalf("sample key %q rejected: %v", key, err)
		}
	}
}

func TestInit_WritesTemplate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "spec2tests.yaml")
	tmplPath := filepath.Join(dir, "templates", "test.ts.tmpl")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", cfgPath, "--template", tmplPath})

	if err := root.Execute(); err != nil {
		t.Fatalf("init execute: %v", err)
	}
	data, err := os.ReadFile(tmplPath)
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	if string(data) != tsemitter.DefaultTemplate {
		t.Fatalf("template differs from the built-in one")
	}
}

func TestInit_ExistingWithoutForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected error for existing file without --force")
	}
	if _, ok := err.(usageError); !ok {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}

	root = NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path, "--force"})
	if err := root.Execute(); err != nil {
		t.Fatalf("init with --force: %v", err)
	}
}
