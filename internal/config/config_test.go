package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Quota.MaxConcurrent != DefaultConfig().Quota.MaxConcurrent {
		t.Errorf("expected default quota, got %+v", cfg.Quota)
	}
}

func TestLoadOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("app_name: myagent\nquota:\n  max_concurrent: 4\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AppName != "myagent" {
		t.Errorf("got app_name %q, want myagent", cfg.AppName)
	}
	if cfg.Quota.MaxConcurrent != 4 {
		t.Errorf("got max_concurrent %d, want 4", cfg.Quota.MaxConcurrent)
	}
}

func TestEnvOverrideLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("AUTONOMIC_LOG_LEVEL", "debug")
	cfg = applyEnvOverrides(cfg)
	if cfg.Logging.Level != "debug" || !cfg.Logging.DebugMode {
		t.Errorf("expected debug log level override, got %+v", cfg.Logging)
	}
}

func TestReservationForFallsBackToCold(t *testing.T) {
	cfg := DefaultConfig()
	delete(cfg.Reservation, capability.Instant.String())
	got := cfg.ReservationFor(capability.Instant)
	want := cfg.Reservation[capability.Cold.String()]
	if got != want {
		t.Errorf("expected fallback to Cold reservation, got %+v want %+v", got, want)
	}
}
