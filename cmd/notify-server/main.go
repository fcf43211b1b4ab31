// cmd/notify-server/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags when building.
	Version = "dev"

	configPath string

	rootCmd = &cobra.Command{
		Use:          "notify-server",
		Short:        "Loyalty program push notification service",
		Long:         "notify-server drafts, moderates and dispatches push notifications to the members of a loyalty organization.",
		SilenceUsage: true,
		Version:      Version,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults to configs/config.yaml)")
	serveCmd.Flags().StringVar(&registryPath, "registry", "configs/activity-registry.json", "path to the activity registry")
	rootCmd.AddCommand(serveCmd, migrateCmd, quotaCmd, registryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
