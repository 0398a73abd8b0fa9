package main

import (
	"context"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	if err := cli.open(); err != nil {
		return err
	}
	email = core.CleanString(email, true /* lower */)
	usr, err := school.Find(ctx, cli.store, func(u school.User) bool { return u.Email == email })
	if err != nil {
		return err
	}
	return cli.svc.SetPassword(ctx, school.System, usr.ID, pwd)
}
