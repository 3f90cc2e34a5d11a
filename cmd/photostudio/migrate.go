package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/digkill/photostudio/internal/config"
	"github.com/digkill/photostudio/internal/database"
	"github.com/digkill/photostudio/pkg/logger"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logr := logger.New(cfg.LogLevel)

			db, err := database.Connect(cfg.MySQLDSN)
			if err != nil {
				return fmt.Errorf("database connect: %w", err)
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return fmt.Errorf("database migrate: %w", err)
			}
			logr.Info("schema applied")
			return nil
		},
	}
}
