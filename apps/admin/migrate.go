package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/storage/database"
)

var (
	gooseRunFunc = database.Migrate // mockable
	openDBFunc   = database.Open    // mockable
)

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	switch cli.conf.Database.Backend {
	case core.BackendSQLite, core.BackendPostgres:
	default:
		return errors.Errorf("backend %q has no migrations", cli.conf.Database.Backend)
	}
	if args[0] == "up" {
		if err := database.CreateIfNotExist(cli.conf); err != nil {
			return err
		}
	}
	db, err := openDBFunc(cli.conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return gooseRunFunc(ctx, db, args[0], args[1:]...)
}
