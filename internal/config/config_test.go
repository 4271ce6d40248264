package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesTemplate(t *testing.T) {
	cfg := Default()
	if cfg.Worker.IntervalSeconds != 2 || cfg.Worker.Batch != 100 || cfg.Worker.MaxAttempts != 5 {
		t.Fatalf("unexpected worker defaults: %+v", cfg.Worker)
	}
	if cfg.Gateway.TimeoutSeconds != 5 {
		t.Fatalf("gateway timeout = %d, want 5", cfg.Gateway.TimeoutSeconds)
	}
	if cfg.Notifications.DeepLinkBase != "stagelink://" {
		t.Fatalf("deep link base = %q", cfg.Notifications.DeepLinkBase)
	}
	if cfg.Auth.AllowLegacyActorHeader {
		t.Fatal("legacy actor header must be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestFromYAMLRejectsNegativeValues(t *testing.T) {
	_, err := FromYAML([]byte("worker:\n  interval_seconds: -1\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestFromYAMLRejectsGarbage(t *testing.T) {
	_, err := FromYAML([]byte("worker: [not a map"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadOptionalFallsBack(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Worker.Batch != 100 {
		t.Fatalf("expected default config, got %+v", cfg.Worker)
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	ws := t.TempDir()
	data := "gateway:\n  url: https://push.example.com/send\nworker:\n  batch: 7\n"
	if err := os.WriteFile(filepath.Join(ws, "stagelink.yml"), []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(ws)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.URL != "https://push.example.com/send" || cfg.Worker.Batch != 7 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for missing config")
	}
}
