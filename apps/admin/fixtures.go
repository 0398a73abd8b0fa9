package main

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/storage"
	"github.com/trezcool/masomo-core/storage/fixtures"
)

func (cli *commandLine) seed(ctx context.Context, path string) error {
	if err := cli.open(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening fixtures")
	}
	defer f.Close()
	if err = fixtures.Load(ctx, cli.store, f); err != nil {
		return err
	}
	cli.logger.Info("fixtures loaded", path)
	return nil
}

func (cli *commandLine) dump(ctx context.Context, path string) error {
	if err := cli.open(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating fixtures file")
	}
	if err = fixtures.Dump(ctx, cli.store, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// copy writes the whole store into the (empty) store of another backend.
func (cli *commandLine) copy(ctx context.Context, backend, path string) error {
	target := *cli.conf
	target.Database.Backend = backend
	switch backend {
	case core.BackendFile:
		if path != "" {
			target.Database.FilePath = path
		}
	case core.BackendSQLite:
		if path != "" {
			target.Database.SQLitePath = path
		}
	case core.BackendPostgres:
	default:
		return errors.Errorf("unknown database backend %q", backend)
	}
	if target.Database == cli.conf.Database {
		return errors.New("source and target stores are the same")
	}

	if err := cli.open(); err != nil {
		return err
	}
	if err := storage.Prepare(ctx, &target); err != nil {
		return err
	}
	to, err := openStoreFunc(&target, cli.logger)
	if err != nil {
		return err
	}
	defer func() { _ = to.Close() }()

	n, err := fixtures.Copy(ctx, cli.store, to)
	if err != nil {
		return err
	}
	cli.logger.Info("store copied", backend, n)
	return nil
}
