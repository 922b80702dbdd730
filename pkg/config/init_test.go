package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if configPath != filepath.Join(tmpDir, "dagpilot", "config.yaml") {
		t.Errorf("Unexpected config path %q", configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	for _, section := range []string{
		"# dagpilot Configuration File",
		"logging:",
		"transport:",
		"pilot:",
		"memory:",
		"predictor:",
		"recorder:",
		"# ZeroMQ link to the vehicle",
	} {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
	if cfg.Pilot.DaggerEvery != 200 {
		t.Errorf("Expected dagger_every 200 in template, got %d", cfg.Pilot.DaggerEvery)
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Unexpected error: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Errorf("Expected --force to overwrite, got: %v", err)
	}
}

func TestInitConfigToPath_Loadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom", "pilot.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}
	if cfg.Frame.Width != 60 {
		t.Errorf("Expected frame width 60, got %d", cfg.Frame.Width)
	}
}
