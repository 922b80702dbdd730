package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const templateHeader = `# dagpilot Configuration File
#
# Every value can be overridden with an environment variable built from its
# path, e.g. DAGPILOT_PILOT_MODE=plain or DAGPILOT_TRANSPORT_DATA_PORT=6000.
`

// sectionComments are written above each top-level key of the template.
var sectionComments = map[string]string{
	"logging":          "Log level (DEBUG, INFO, WARN, ERROR), format (text, json) and output (stdout, stderr, path)",
	"telemetry":        "OpenTelemetry tracing and Pyroscope profiling",
	"metrics":          "Prometheus metrics, served by the API server at /metrics",
	"api":              "Status API: /health, /health/ready, /status",
	"shutdown_timeout": "Upper bound for flushing the session on shutdown",
	"transport":        "ZeroMQ link to the vehicle; each port+1 is the handshake channel",
	"pilot":            "Control loop: mode (dagger, plain), retrain cadences in ticks, seed (0 = random)",
	"memory":           "Observation window: length frames, interval ticks apart",
	"frame":            "Storage and inference resolution",
	"predictor":        "Learned policy: linear (in-process) or remote (HTTP model server)",
	"recorder":         "Session artifacts (<name>.avi + <name>.jsonl)",
	"catalog":          "BadgerDB index of finished sessions",
	"upload":           "Optional S3 upload of finished sessions",
}

// InitConfig writes a commented default configuration to the default
// location and returns its path. It refuses to overwrite unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a commented default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	data, err := renderTemplate(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// renderTemplate marshals cfg and annotates each top-level section.
func renderTemplate(cfg *Config) ([]byte, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(templateHeader)

	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		if line != "" && line[0] != ' ' {
			key, _, _ := strings.Cut(line, ":")
			if comment, ok := sectionComments[key]; ok {
				fmt.Fprintf(&out, "\n# %s\n", comment)
			}
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
