package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lantern-hq/lantern/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate loads the configuration file, applies LANTERN_* environment
variable overrides, and checks the result without starting the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("configuration valid: environment=%s store=%s listen=%s\n",
			cfg.Evaluator.Environment, cfg.Store.Backend, cfg.Server.ListenAddress)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
