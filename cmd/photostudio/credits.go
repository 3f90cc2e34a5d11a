package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/digkill/photostudio/internal/config"
	"github.com/digkill/photostudio/internal/database"
	"github.com/digkill/photostudio/internal/models"
	"github.com/digkill/photostudio/internal/repository"
	"github.com/digkill/photostudio/internal/service"
	"github.com/digkill/photostudio/pkg/logger"
)

func creditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Inspect or change user credit balances",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "grant <user-id> <delta>",
		Short: "Add (or, with a negative delta, remove) credits",
		Long: `Adjust a user's balance outside the payment workflow.

Examples:
  photostudio credits grant 42 100
  photostudio credits grant 42 -- -30`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := models.ParseID(args[0])
			if err != nil {
				return err
			}
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("parse delta %q: %w", args[1], err)
			}

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

			ledger := service.NewLedger(repository.NewUserRepository(db))
			balance, err := ledger.Adjust(cmd.Context(), userID, delta)
			if err != nil {
				return fmt.Errorf("adjust credits: %w", err)
			}
			logr.Info("credits adjusted", "user_id", userID, "delta", delta, "balance", balance)
			fmt.Fprintf(cmd.OutOrStdout(), "user %d balance: %d\n", userID, balance)
			return nil
		},
	})
	return cmd
}
