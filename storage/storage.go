// Package storage opens the EntityStore backend selected by the configuration.
package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
	"github.com/trezcool/masomo-core/storage/database"
	"github.com/trezcool/masomo-core/storage/filestore"
	"github.com/trezcool/masomo-core/storage/sqlstore"
)

// Open returns the store for conf.Database.Backend. Relational databases must already be migrated.
func Open(conf *core.Config, log core.Logger) (school.Store, error) {
	switch conf.Database.Backend {
	case core.BackendFile, "":
		store, err := filestore.Open(conf.Database.FilePath)
		if err != nil {
			return nil, errors.Wrap(err, "opening file store")
		}
		return store, nil
	case core.BackendSQLite, core.BackendPostgres:
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(
			db,
			sqlstore.WithRetry(conf.Database.MaxRetries, conf.Database.RetryBackoff),
			sqlstore.WithLogger(log),
		), nil
	}
	return nil, errors.Errorf("unknown database backend %q", conf.Database.Backend)
}

// Prepare creates (PostgreSQL only) and migrates the relational database selected by conf. The file backend
// needs no preparation.
func Prepare(ctx context.Context, conf *core.Config) error {
	switch conf.Database.Backend {
	case core.BackendSQLite, core.BackendPostgres:
	default:
		return nil
	}
	if err := database.CreateIfNotExist(conf); err != nil {
		return err
	}
	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return database.MigrateUp(ctx, db)
}
