package telemetry

// Config holds OpenTelemetry tracing configuration
type Config struct {
	Enabled bool

	// ServiceName is the name reported to the trace backend
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	Endpoint string
	Insecure bool

	// SampleRate is the trace sampling rate in [0, 1]
	SampleRate float64
}

// DefaultConfig returns a disabled tracing configuration
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "dagpilot",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
