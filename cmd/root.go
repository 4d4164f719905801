package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aura",
	Short: "Aura - a proactive multi-agent assistant",
	Long:  `Aura coordinates specialized assistant agents and volunteers suggestions from ambient context.`,
}

func Execute() error {
	return rootCmd.Execute()
}
