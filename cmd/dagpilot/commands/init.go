package commands

import (
	"fmt"

	"github.com/marmos91/dagpilot/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample dagpilot configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/dagpilot/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  dagpilot init

  # Force overwrite existing config
  dagpilot init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var (
		configPath = GetConfigFile()
		err        error
	)
	if configPath != "" {
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Set transport.host and the ports your vehicle publishes on")
	_, _ = fmt.Fprintln(out, "  2. Try the loop offline with: dagpilot simulate")
	_, _ = fmt.Fprintf(out, "  3. Drive with: dagpilot start --config %s\n", configPath)
	return nil
}
