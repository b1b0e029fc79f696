package framework

import (
	"os"
	"path/filepath"
	"testing"
)

func writeBundledFramework(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bin", "implementation"), []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, envExampleName), []byte("ANTHROPIC_API_KEY=\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInstall_CopiesAndSeeds(t *testing.T) {
	bundled := t.TempDir()
	writeBundledFramework(t, bundled)
	project := t.TempDir()

	meta, err := Install(bundled, project, "1.0.0")
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if meta.Version != "1.0.0" {
		t.Errorf("meta.Version = %q, want 1.0.0", meta.Version)
	}
	if meta.ContentHash == "" {
		t.Error("meta.ContentHash is empty")
	}

	dest := filepath.Join(project, DirName)
	if _, err := os.Stat(filepath.Join(dest, "bin", "implementation")); err != nil {
		t.Errorf("bin/implementation not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "specs")); err != nil {
		t.Errorf("specs directory not seeded: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, envFileName)); err != nil {
		t.Errorf(".env not seeded from .env.example: %v", err)
	}
}

func TestInstall_RejectsExisting(t *testing.T) {
	bundled := t.TempDir()
	writeBundledFramework(t, bundled)
	project := t.TempDir()

	if _, err := Install(bundled, project, "1.0.0"); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if _, err := Install(bundled, project, "1.0.0"); err == nil {
		t.Error("Install() error = nil on second install, want error")
	}
}

func TestUpdate_PreservesSpecsAndEnv(t *testing.T) {
	bundled := t.TempDir()
	writeBundledFramework(t, bundled)
	project := t.TempDir()

	if _, err := Install(bundled, project, "1.0.0"); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	dest := filepath.Join(project, DirName)
	specMarker := filepath.Join(dest, "specs", "task-1", "spec.md")
	if err := os.MkdirAll(filepath.Dir(specMarker), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(specMarker, []byte("# Task 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, envFileName), []byte("ANTHROPIC_API_KEY=secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(bundled, "bin", "qa"), []byte("#!/bin/sh\necho qa\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	meta, err := Update(bundled, project, "1.1.0")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if meta.Version != "1.1.0" {
		t.Errorf("meta.Version = %q, want 1.1.0", meta.Version)
	}

	if _, err := os.Stat(filepath.Join(dest, "bin", "qa")); err != nil {
		t.Errorf("new bundled file not applied: %v", err)
	}
	if _, err := os.Stat(specMarker); err != nil {
		t.Errorf("specs directory was not preserved across update: %v", err)
	}
	envData, err := os.ReadFile(filepath.Join(dest, envFileName))
	if err != nil {
		t.Fatalf("read .env after update: %v", err)
	}
	if string(envData) != "ANTHROPIC_API_KEY=secret\n" {
		t.Errorf(".env was not preserved across update, got %q", envData)
	}
}
