package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mgpai22/revoice/internal/config"
	"github.com/mgpai22/revoice/internal/logging"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the revoice config file",
	// skips loading the config so a broken file can be replaced
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.NewLogger(verbose)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file populated with the defaults",
	Long: `Write a config file populated with the defaults.

The file goes to --config, or ~/.config/revoice/config.toml when unset.
An existing file is only replaced with --force.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}

	written, err := writeSampleConfig(path, force)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config written: %s\n", written)
	return nil
}

func writeSampleConfig(path string, force bool) (string, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	sample, err := config.Sample()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}

	abs, _ := filepath.Abs(path)
	return abs, nil
}
