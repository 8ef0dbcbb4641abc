package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/osbuddy/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an osbuddy configuration with an interactive wizard",
	Long:  `Runs an interactive wizard that picks the LLM provider, model, service URL and ports, and writes .osbuddy.yml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
