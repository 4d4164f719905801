package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show assistant health and queue statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer app.Close()

		health := app.orch.HealthCheck()
		out, err := json.MarshalIndent(health, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
