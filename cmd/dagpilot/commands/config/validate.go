package config

import (
	"fmt"
	"io"

	"github.com/marmos91/dagpilot/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the dagpilot configuration file.

Checks for syntax errors, missing required fields and invalid values, then
prints a summary of the effective settings.

Examples:
  # Validate default config
  dagpilot config validate

  # Validate specific config file
  dagpilot config validate --config /etc/dagpilot/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	printValidation(cmd.OutOrStdout(), displayPath, cfg)
	return nil
}

// Warnings lists settings that load fine but are likely mistakes.
func Warnings(cfg *config.Config) []string {
	var warnings []string

	if cfg.Upload.Enabled && (cfg.Upload.AccessKeyID == "") != (cfg.Upload.SecretAccessKey == "") {
		warnings = append(warnings, "Only one of upload.access_key_id / upload.secret_access_key is set - falling back to the default AWS credential chain")
	}
	if cfg.Upload.Enabled && !cfg.Catalog.Enabled {
		warnings = append(warnings, "Uploads are enabled but the catalog is disabled - upload locations will not be indexed")
	}
	if cfg.Pilot.Mode == "plain" && cfg.Pilot.ExpertFallback {
		warnings = append(warnings, "pilot.expert_fallback has no effect in plain mode")
	}
	if cfg.Predictor.Type == "remote" && cfg.Pilot.RetrainTimeout == 0 {
		warnings = append(warnings, "Remote predictor without pilot.retrain_timeout - a stalled trainer blocks the loop")
	}
	if !cfg.API.IsEnabled() {
		warnings = append(warnings, "Status API disabled - 'dagpilot status' will not reach this pilot")
	}
	return warnings
}

func printValidation(w io.Writer, path string, cfg *config.Config) {
	fmt.Fprintf(w, "Configuration file: %s\n", path)
	fmt.Fprintln(w, "Validation: OK")

	if warnings := Warnings(cfg); len(warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}

	fmt.Fprintf(w, "\nConfiguration summary:\n")
	fmt.Fprintf(w, "  Pilot mode:      %s\n", cfg.Pilot.Mode)
	fmt.Fprintf(w, "  Predictor:       %s\n", cfg.Predictor.Type)
	fmt.Fprintf(w, "  Vehicle:         %s (data %d, control %d)\n", cfg.Transport.Host, cfg.Transport.DataPort, cfg.Transport.ControlPort)
	fmt.Fprintf(w, "  Memory:          length %d, interval %d\n", cfg.Memory.Length, cfg.Memory.Interval)
	fmt.Fprintf(w, "  API port:        %d\n", cfg.API.Port)
	fmt.Fprintf(w, "  Log level:       %s\n", cfg.Logging.Level)
}
