package main

import (
	"fmt"

	"github.com/FranksOps/pdfsearch/internal/config"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints the configuration after the config file, PDFSEARCH_*
environment variables and flags have been applied. With --defaults it prints
the built-in defaults instead, which is a convenient starting point for
pdfsearch.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := cfg
		if defaults, _ := cmd.Flags().GetBool("defaults"); defaults {
			c = config.Default()
		}
		out, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	configCmd.Flags().Bool("defaults", false, "print the built-in defaults")

	rootCmd.AddCommand(configCmd)
}
