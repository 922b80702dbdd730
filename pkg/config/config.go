package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/pkg/api"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DAGPILOT_PILOT_MODE=plain.
const EnvPrefix = "DAGPILOT"

// Config represents the dagpilot configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DAGPILOT_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics toggles Prometheus instrumentation
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the status HTTP server
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// ShutdownTimeout is how long the session flush may run before a warning is
	// logged. The flush itself is always awaited.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Transport configures the vehicle link
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`

	// Pilot configures the control loop
	Pilot PilotConfig `mapstructure:"pilot" yaml:"pilot"`

	// Memory configures the observation window fed to the predictor
	Memory MemoryConfig `mapstructure:"memory" yaml:"memory"`

	// Frame sets the storage and inference resolution
	Frame FrameConfig `mapstructure:"frame" yaml:"frame"`

	// Predictor selects and configures the learned policy
	Predictor PredictorConfig `mapstructure:"predictor" yaml:"predictor"`

	// Recorder configures session persistence
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`

	// Catalog indexes finished sessions
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`

	// Upload copies finished session artifacts to S3
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig toggles Prometheus metrics. When enabled they are served on
// the API server at /metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// TransportConfig configures the ZeroMQ link to the vehicle.
type TransportConfig struct {
	// Host is where the vehicle publishes observations
	// Default: "127.0.0.1"
	Host string `mapstructure:"host" validate:"required" yaml:"host"`

	// BindAddress is where control commands are published
	// Default: "*"
	BindAddress string `mapstructure:"bind_address" validate:"required" yaml:"bind_address"`

	// DataPort carries observations; DataPort+1 is its sync channel
	// Default: 5555
	DataPort int `mapstructure:"data_port" validate:"required,min=1,max=65534" yaml:"data_port"`

	// ControlPort carries commands; ControlPort+1 is its sync channel
	// Default: 5557
	ControlPort int `mapstructure:"control_port" validate:"required,min=1,max=65534" yaml:"control_port"`

	// HandshakeTimeout bounds synchronization. Zero waits forever.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`

	// DialRetry is the pause between connection attempts
	// Default: 250ms
	DialRetry time.Duration `mapstructure:"dial_retry" yaml:"dial_retry"`

	// ReceiveBuffer and SendBuffer size the in-process queues
	ReceiveBuffer int `mapstructure:"receive_buffer" validate:"omitempty,min=1" yaml:"receive_buffer"`
	SendBuffer    int `mapstructure:"send_buffer" validate:"omitempty,min=1" yaml:"send_buffer"`

	// Mapping overrides telemetry wire keys, e.g. {"steering": "sa"}
	Mapping map[string]string `mapstructure:"mapping" yaml:"mapping,omitempty"`
}

// PilotConfig configures the control loop.
type PilotConfig struct {
	// Mode is dagger (expert + model) or plain (model only)
	// Default: dagger
	Mode string `mapstructure:"mode" validate:"required,oneof=dagger plain" yaml:"mode"`

	// DaggerEvery is the retrain cadence in dagger mode, in ticks
	// Default: 200
	DaggerEvery int `mapstructure:"dagger_every" validate:"required,min=1" yaml:"dagger_every"`

	// PlainEvery is the retrain cadence in plain mode, in ticks
	// Default: 500
	PlainEvery int `mapstructure:"plain_every" validate:"required,min=1" yaml:"plain_every"`

	// RetrainTimeout bounds each fit. Zero means no limit.
	RetrainTimeout time.Duration `mapstructure:"retrain_timeout" validate:"gte=0" yaml:"retrain_timeout"`

	// ExpertFallback sends the expert action when prediction fails
	ExpertFallback bool `mapstructure:"expert_fallback" yaml:"expert_fallback"`

	// Seed makes policy draws and training shuffles reproducible. Zero seeds
	// from the clock.
	Seed uint64 `mapstructure:"seed" yaml:"seed"`

	// SaveModel persists the predictor on shutdown after a successful retrain
	SaveModel bool `mapstructure:"save_model" yaml:"save_model"`
}

// MemoryConfig configures the observation window.
type MemoryConfig struct {
	// Length is the number of frames per observation
	// Default: 1
	Length int `mapstructure:"length" validate:"required,min=1" yaml:"length"`

	// Interval is the spacing between frames, in ticks
	// Default: 1
	Interval int `mapstructure:"interval" validate:"required,min=1" yaml:"interval"`
}

// FrameConfig sets the resolution frames are downsampled to.
type FrameConfig struct {
	// Default: 60x40 at 20 fps
	Width  int `mapstructure:"width" validate:"required,min=1" yaml:"width"`
	Height int `mapstructure:"height" validate:"required,min=1" yaml:"height"`
	FPS    int `mapstructure:"fps" validate:"required,min=1" yaml:"fps"`
}

// PredictorConfig selects the learned policy.
type PredictorConfig struct {
	// Type is linear (in-process) or remote (HTTP model server)
	// Default: linear
	Type string `mapstructure:"type" validate:"required,oneof=linear remote" yaml:"type"`

	// ModelsPath stores saved and pretrained models
	ModelsPath string `mapstructure:"models_path" validate:"required" yaml:"models_path"`

	// PredictionMode is differential (deltas) or absolute
	// Default: differential
	PredictionMode string `mapstructure:"prediction_mode" validate:"required,oneof=differential absolute" yaml:"prediction_mode"`

	// Pretrained loads model_n{length}_m{interval}_{model_num} before driving
	Pretrained bool `mapstructure:"pretrained" yaml:"pretrained"`
	ModelNum   int  `mapstructure:"model_num" validate:"gte=0" yaml:"model_num"`

	// Linear configures the in-process ridge regression
	Linear LinearConfig `mapstructure:"linear" yaml:"linear"`

	// Remote configures the model server client
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`
}

// LinearConfig configures the ridge regression predictor.
type LinearConfig struct {
	Lambda     float64 `mapstructure:"lambda" validate:"gt=0" yaml:"lambda"`
	PoolWidth  int     `mapstructure:"pool_width" validate:"min=1" yaml:"pool_width"`
	PoolHeight int     `mapstructure:"pool_height" validate:"min=1" yaml:"pool_height"`
}

// RemoteConfig configures the model server client.
type RemoteConfig struct {
	URL            string        `mapstructure:"url" validate:"omitempty,url" yaml:"url"`
	PredictTimeout time.Duration `mapstructure:"predict_timeout" yaml:"predict_timeout"`
}

// RecorderConfig configures session persistence.
type RecorderConfig struct {
	// SessionsPath receives <name>.avi and <name>.jsonl per session
	SessionsPath string `mapstructure:"sessions_path" validate:"required" yaml:"sessions_path"`

	// JPEGQuality is the MJPEG frame quality
	// Default: 90
	JPEGQuality int `mapstructure:"jpeg_quality" validate:"min=1,max=100" yaml:"jpeg_quality"`
}

// CatalogConfig configures the BadgerDB session index.
type CatalogConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the BadgerDB directory
	Path string `mapstructure:"path" validate:"required_if=Enabled true" yaml:"path"`
}

// UploadConfig configures S3 upload of session artifacts.
type UploadConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	Bucket string `mapstructure:"bucket" validate:"required_if=Enabled true" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint (MinIO, Localstack)
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// Timeout bounds the upload of one session
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		logger.Debug("No configuration file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the file is
// missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  dagpilot init\n\n"+
				"Or specify a custom config file:\n"+
				"  dagpilot <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  dagpilot init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the upload section may carry S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment overrides and the config file location.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DAGPILOT_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reports whether a config file was found and read.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// bindEnvKeys registers every leaf key of t with viper so environment
// overrides apply even when the config file omits the key.
func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			bindEnvKeys(v, f.Type, key)
			continue
		}
		if f.Type.Kind() == reflect.Map {
			continue
		}
		_ = v.BindEnv(key)
	}
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook converts strings like "30s" or "5m" and raw numbers
// (nanoseconds) to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/dagpilot, ~/.config/dagpilot, or "."
// when no home directory is available.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dagpilot")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dagpilot")
}

// getDataDir returns $XDG_DATA_HOME/dagpilot or ~/.local/share/dagpilot.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "dagpilot")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "dagpilot")
	}
	return filepath.Join(home, ".local", "share", "dagpilot")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
