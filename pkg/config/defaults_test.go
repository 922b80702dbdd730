package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Pilot(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Pilot.Mode != "dagger" {
		t.Errorf("Expected default mode 'dagger', got %q", cfg.Pilot.Mode)
	}
	if cfg.Pilot.DaggerEvery != 200 {
		t.Errorf("Expected dagger cadence 200, got %d", cfg.Pilot.DaggerEvery)
	}
	if cfg.Pilot.PlainEvery != 500 {
		t.Errorf("Expected plain cadence 500, got %d", cfg.Pilot.PlainEvery)
	}
	if cfg.Pilot.RetrainTimeout != 0 {
		t.Errorf("Expected no retrain timeout by default, got %v", cfg.Pilot.RetrainTimeout)
	}
	if cfg.Pilot.ExpertFallback {
		t.Error("Expected expert fallback disabled by default")
	}
}

func TestApplyDefaults_Frame(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Frame.Width != 60 || cfg.Frame.Height != 40 || cfg.Frame.FPS != 20 {
		t.Errorf("Expected 60x40@20, got %dx%d@%d", cfg.Frame.Width, cfg.Frame.Height, cfg.Frame.FPS)
	}
}

func TestApplyDefaults_Transport(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Transport.DataPort != 5555 || cfg.Transport.ControlPort != 5557 {
		t.Errorf("Expected ports 5555/5557, got %d/%d", cfg.Transport.DataPort, cfg.Transport.ControlPort)
	}
	if cfg.Transport.DialRetry != 250*time.Millisecond {
		t.Errorf("Expected dial retry 250ms, got %v", cfg.Transport.DialRetry)
	}
}

func TestApplyDefaults_API(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.API.Port != 8090 {
		t.Errorf("Expected default API port 8090, got %d", cfg.API.Port)
	}
	if cfg.API.IdleTimeout != 60*time.Second {
		t.Errorf("Expected default idle timeout 60s, got %v", cfg.API.IdleTimeout)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "debug", Format: "json"},
		Pilot:   PilotConfig{Mode: "PLAIN", PlainEvery: 100},
		Memory:  MemoryConfig{Length: 3, Interval: 5},
		Predictor: PredictorConfig{
			Type:       "remote",
			ModelsPath: "/srv/models",
		},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json' preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Pilot.Mode != "plain" || cfg.Pilot.PlainEvery != 100 {
		t.Errorf("Pilot values not preserved: %+v", cfg.Pilot)
	}
	if cfg.Memory.Length != 3 || cfg.Memory.Interval != 5 {
		t.Errorf("Memory values not preserved: %+v", cfg.Memory)
	}
	if cfg.Predictor.ModelsPath != "/srv/models" {
		t.Errorf("Expected models path preserved, got %q", cfg.Predictor.ModelsPath)
	}
}

func TestGetDefaultConfig_Valid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}
}
