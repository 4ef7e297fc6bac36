package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	pkgviper "github.com/spf13/viper"

	"github.com/zinrai/l2network-mvp-go/internal/config"
	"github.com/zinrai/l2network-mvp-go/internal/infrastructure/db"
	"github.com/zinrai/l2network-mvp-go/internal/logger"
)

func migrateCommand(ctx context.Context, v *pkgviper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return errors.Errorf("database driver %q has no migrations", cfg.Database.Driver)
			}

			conn, err := db.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			needsMigration, err := conn.NeedsMigration(ctx)
			if err != nil {
				return err
			}
			if !needsMigration {
				logger.G(ctx).Info("No migration needed")
				return nil
			}
			if v.GetBool("check") {
				return errors.New("migration needed, but check set to true")
			}
			return conn.Migrate(ctx)
		},
	}

	cmd.Flags().Bool("check", false, "Do not perform migration, but check if migration is necessary")
	return cmd
}
