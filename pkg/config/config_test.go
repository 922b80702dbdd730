package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, `
logging:
  level: "info"

pilot:
  mode: dagger
  retrain_timeout: 2m

recorder:
  sessions_path: "`+yamlSafePath(tmpDir)+`/sessions"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Pilot.RetrainTimeout != 2*time.Minute {
		t.Errorf("Expected retrain_timeout 2m, got %v", cfg.Pilot.RetrainTimeout)
	}
	if cfg.Pilot.DaggerEvery != 200 || cfg.Pilot.PlainEvery != 500 {
		t.Errorf("Expected cadences 200/500, got %d/%d", cfg.Pilot.DaggerEvery, cfg.Pilot.PlainEvery)
	}
	if cfg.Recorder.SessionsPath != yamlSafePath(tmpDir)+"/sessions" {
		t.Errorf("Unexpected sessions path %q", cfg.Recorder.SessionsPath)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg.Transport.DataPort != 5555 {
		t.Errorf("Expected default data port 5555, got %d", cfg.Transport.DataPort)
	}
	if cfg.Predictor.Type != "linear" {
		t.Errorf("Expected default predictor 'linear', got %q", cfg.Predictor.Type)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	configPath := writeConfig(t, `
pilot:
  mode: autopilot
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown pilot mode")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DAGPILOT_PILOT_MODE", "plain")
	t.Setenv("DAGPILOT_PILOT_DAGGER_EVERY", "50")
	t.Setenv("DAGPILOT_PILOT_SEED", "42")
	t.Setenv("DAGPILOT_TRANSPORT_HANDSHAKE_TIMEOUT", "15s")

	configPath := writeConfig(t, `
pilot:
  mode: dagger
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Pilot.Mode != "plain" {
		t.Errorf("Expected env override mode 'plain', got %q", cfg.Pilot.Mode)
	}
	if cfg.Pilot.DaggerEvery != 50 {
		t.Errorf("Expected env override dagger_every 50, got %d", cfg.Pilot.DaggerEvery)
	}
	if cfg.Pilot.Seed != 42 {
		t.Errorf("Expected env override seed 42, got %d", cfg.Pilot.Seed)
	}
	if cfg.Transport.HandshakeTimeout != 15*time.Second {
		t.Errorf("Expected env override handshake_timeout 15s, got %v", cfg.Transport.HandshakeTimeout)
	}
}

func TestLoad_Mapping(t *testing.T) {
	configPath := writeConfig(t, `
transport:
  mapping:
    steering: steer
    throttle: gas
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Transport.Mapping["steering"] != "steer" {
		t.Errorf("Expected steering mapped to 'steer', got %q", cfg.Transport.Mapping["steering"])
	}
}

func TestLoad_UnknownMappingField(t *testing.T) {
	configPath := writeConfig(t, `
transport:
  mapping:
    handbrake: hb
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for unknown mapping field")
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Pilot.Mode = "plain"
	cfg.Memory.Length = 4
	cfg.Memory.Interval = 2

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 && os.PathSeparator == '/' {
		t.Errorf("Expected 0600 permissions, got %v", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to reload saved config: %v", err)
	}
	if loaded.Pilot.Mode != "plain" || loaded.Memory.Length != 4 || loaded.Memory.Interval != 2 {
		t.Errorf("Saved values not preserved: %+v %+v", loaded.Pilot, loaded.Memory)
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if got := GetConfigDir(); got != filepath.Join(tmpDir, "dagpilot") {
		t.Errorf("Expected config dir under XDG_CONFIG_HOME, got %q", got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(tmpDir, "dagpilot", "config.yaml") {
		t.Errorf("Unexpected default config path %q", got)
	}
	if DefaultConfigExists() {
		t.Error("Expected no default config in a fresh directory")
	}
}
