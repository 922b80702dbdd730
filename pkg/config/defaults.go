package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dagpilot/pkg/pilot"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	cfg.API.ApplyDefaults()
	applyTransportDefaults(&cfg.Transport)
	applyPilotDefaults(&cfg.Pilot)
	applyMemoryDefaults(&cfg.Memory)
	applyFrameDefaults(&cfg.Frame)
	applyPredictorDefaults(&cfg.Predictor)
	applyRecorderDefaults(&cfg.Recorder)
	applyCatalogDefaults(&cfg.Catalog)
	applyUploadDefaults(&cfg.Upload)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.BindAddress == "" {
		cfg.BindAddress = "*"
	}
	if cfg.DataPort == 0 {
		cfg.DataPort = 5555
	}
	if cfg.ControlPort == 0 {
		cfg.ControlPort = 5557
	}
	if cfg.DialRetry == 0 {
		cfg.DialRetry = 250 * time.Millisecond
	}
	if cfg.ReceiveBuffer == 0 {
		cfg.ReceiveBuffer = 64
	}
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = 16
	}
}

func applyPilotDefaults(cfg *PilotConfig) {
	if cfg.Mode == "" {
		cfg.Mode = string(pilot.ModeDagger)
	}
	cfg.Mode = strings.ToLower(cfg.Mode)

	if cfg.DaggerEvery == 0 {
		cfg.DaggerEvery = pilot.DefaultDaggerEvery
	}
	if cfg.PlainEvery == 0 {
		cfg.PlainEvery = pilot.DefaultPlainEvery
	}
}

func applyMemoryDefaults(cfg *MemoryConfig) {
	if cfg.Length == 0 {
		cfg.Length = 1
	}
	if cfg.Interval == 0 {
		cfg.Interval = 1
	}
}

func applyFrameDefaults(cfg *FrameConfig) {
	if cfg.Width == 0 {
		cfg.Width = vehicle.DefaultWidth
	}
	if cfg.Height == 0 {
		cfg.Height = vehicle.DefaultHeight
	}
	if cfg.FPS == 0 {
		cfg.FPS = vehicle.DefaultFPS
	}
}

func applyPredictorDefaults(cfg *PredictorConfig) {
	if cfg.Type == "" {
		cfg.Type = "linear"
	}
	if cfg.ModelsPath == "" {
		cfg.ModelsPath = filepath.Join(getDataDir(), "models")
	}
	if cfg.PredictionMode == "" {
		cfg.PredictionMode = string(vehicle.ModeDifferential)
	}
	if cfg.Linear.Lambda == 0 {
		cfg.Linear.Lambda = 1.0
	}
	if cfg.Linear.PoolWidth == 0 {
		cfg.Linear.PoolWidth = 8
	}
	if cfg.Linear.PoolHeight == 0 {
		cfg.Linear.PoolHeight = 6
	}
	if cfg.Remote.PredictTimeout == 0 {
		cfg.Remote.PredictTimeout = 200 * time.Millisecond
	}
}

func applyRecorderDefaults(cfg *RecorderConfig) {
	if cfg.SessionsPath == "" {
		cfg.SessionsPath = filepath.Join(getDataDir(), "sessions")
	}
	if cfg.JPEGQuality == 0 {
		cfg.JPEGQuality = 90
	}
}

func applyCatalogDefaults(cfg *CatalogConfig) {
	if cfg.Path == "" {
		cfg.Path = filepath.Join(getDataDir(), "catalog")
	}
}

func applyUploadDefaults(cfg *UploadConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "sessions/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
}

// GetDefaultConfig returns a Config with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
