package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"kpiconsole/internal/platform/config"
	"kpiconsole/internal/platform/db"
)

var rollback bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the postgres schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.StoreDriver != config.StorePostgres {
			return errors.New("migrate requires STORE_DRIVER=postgres")
		}
		pool, err := db.Connect(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.Migrate(cmd.Context(), pool, rollback); err != nil {
			return err
		}
		slog.Info("migrations applied", "rollback", rollback)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&rollback, "rollback", false, "Roll back the most recent migration")
}
