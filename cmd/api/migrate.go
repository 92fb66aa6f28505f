package main

import (
	"errors"

	"github.com/spf13/cobra"

	"foodcart/internal/store"
)

func newMigrateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := f.setup()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			pg, err := store.NewPostgres(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer func() { _ = pg.Close() }()
			if err := pg.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
