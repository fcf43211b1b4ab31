// cmd/notify-server/migrate.go
package main

import (
	"fmt"

	"loyalty-notify/internal/common/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tables the service reads and writes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		if err := database.Migrate(ctx, a.pg.DB); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.log.Info("schema up to date", map[string]interface{}{"statements": len(database.Schema)})
		return nil
	},
}
