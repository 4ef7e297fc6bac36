package db

import (
	"context"
	"fmt"

	migrate "github.com/golang-migrate/migrate"
	"github.com/golang-migrate/migrate/database/postgres"
	bindata "github.com/golang-migrate/migrate/source/go_bindata"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zinrai/l2network-mvp-go/internal/infrastructure/db/migrations"
	"github.com/zinrai/l2network-mvp-go/internal/logger"
)

func (d *DB) newMigrator(ctx context.Context) (*migrate.Migrate, error) {
	names, err := migrations.AssetNames()
	if err != nil {
		return nil, err
	}
	s := bindata.Resource(names, migrations.Asset)

	src, err := bindata.WithInstance(s)
	if err != nil {
		return nil, errors.Wrap(err, "could not load migrations")
	}

	cfg := postgres.Config{
		MigrationsTable: "migrations",
	}
	if err := d.QueryRowContext(ctx, "SELECT current_database()").Scan(&cfg.DatabaseName); err != nil {
		return nil, errors.Wrap(err, "could not select current database")
	}

	driver, err := postgres.WithInstance(d.DB, &cfg)
	if err != nil {
		return nil, errors.Wrap(err, "could not setup postgres migration client")
	}
	m, err := migrate.NewWithInstance("go-bindata", src, "postgres", driver)
	if err != nil {
		return nil, errors.Wrap(err, "could not create migration instance")
	}
	m.Log = &migrateLogger{FieldLogger: logger.G(ctx)}
	return m, nil
}

// NeedsMigration reports whether the schema is behind the embedded migrations.
func (d *DB) NeedsMigration(ctx context.Context) (bool, error) {
	m, err := d.newMigrator(ctx)
	if err != nil {
		return false, err
	}
	version, dirty, err := m.Version()
	if err == migrate.ErrNilVersion {
		return true, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "could not read schema version")
	}
	logger.G(ctx).WithField("version", version).Info("Current schema version")
	if dirty {
		return true, fmt.Errorf("database is dirty at version: %d", version)
	}
	return version < migrations.LatestVersion, nil
}

func (d *DB) Migrate(ctx context.Context) error {
	m, err := d.newMigrator(ctx)
	if err != nil {
		return err
	}
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "could not perform migrations")
	}
	return nil
}

type migrateLogger struct {
	logrus.FieldLogger
}

func (ml migrateLogger) Verbose() bool {
	return true
}
