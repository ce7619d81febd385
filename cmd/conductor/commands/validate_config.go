package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentfleet/conductor/internal/config"
	"github.com/agentfleet/conductor/pkg/types"
)

var validateConfigDir string

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "load and validate conductor's configuration without starting",
	RunE:  runValidateConfig,
}

func init() {
	validateConfigCmd.Flags().StringVar(&validateConfigDir, "directory", "", "working directory (config search root)")
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	dir, err := GetWorkDir(validateConfigDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	fmt.Println("configuration is valid")
	return nil
}

// validateConfig holds the checks Load itself doesn't enforce (it
// merges and defaults rather than rejecting), split out from
// runValidateConfig so it can be exercised without touching the
// filesystem or process working directory.
func validateConfig(cfg *types.Config) error {
	if cfg.GraphWorkers < 0 {
		return fmt.Errorf("config invalid: graphWorkers must be >= 0, got %d", cfg.GraphWorkers)
	}
	for name, spec := range cfg.Providers {
		if spec.BaseURL == "" {
			return fmt.Errorf("config invalid: provider %q has no baseUrl", name)
		}
		if spec.APIFormat != types.FormatAnthropic && spec.APIFormat != types.FormatOpenAI {
			return fmt.Errorf("config invalid: provider %q has unknown apiFormat %q", name, spec.APIFormat)
		}
	}
	return nil
}
