package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configWritePath string

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Prints the configuration after the config file, environment variables and
global flags have been applied. With --write the result is also saved to a file,
which is a convenient way to bootstrap a config:

  prizeops config --write ~/.prizeops.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))

		if configWritePath != "" {
			if err := cfg.Save(configWritePath); err != nil {
				return err
			}
			logger.Info("config written")
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", configWritePath)
		}
		return nil
	},
}

func init() {
	configCmd.Flags().StringVar(&configWritePath, "write", "", "Also save the effective config to this path")
}
