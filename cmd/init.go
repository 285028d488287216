package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kzidane/askbook/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize askbook configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure askbook and generates a .askbook.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
