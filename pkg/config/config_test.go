package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	BaseURL string        `envconfig:"BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"30s"`
	Mode    string        `envconfig:"MODE" default:"local"`
}

// Tests in this file mutate process environment and package state; they do not run in parallel.

func TestNewReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "CFGTEST_BASE_URL=http://bank.internal\nCFGTEST_TIMEOUT=5s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("CFGTEST_BASE_URL")
		os.Unsetenv("CFGTEST_TIMEOUT")
		SetEnvFile("")
	})
	t.Setenv("CFGTEST_MODE", "remote")

	SetEnvFile(path)
	cfg, err := New[sampleConfig]("CFGTEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.BaseURL != "http://bank.internal" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.Mode != "remote" {
		t.Fatalf("Mode = %q, want environment to win", cfg.Mode)
	}
}

func TestNewMissingEnvFile(t *testing.T) {
	t.Cleanup(func() { SetEnvFile("") })
	SetEnvFile(filepath.Join(t.TempDir(), "missing.env"))

	if _, err := New[sampleConfig]("CFGTEST_ABSENT"); err == nil {
		t.Fatal("New() error = nil for a missing env file")
	}
}

func TestMustNewPanicsOnError(t *testing.T) {
	t.Cleanup(func() { SetEnvFile("") })
	SetEnvFile("")

	defer func() {
		if recover() == nil {
			t.Fatal("MustNew() did not panic on missing required value")
		}
	}()
	MustNew[sampleConfig]("CFGTEST_NOTHING_SET")
}
