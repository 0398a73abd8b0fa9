package main

import (
	"context"

	"github.com/trezcool/masomo-core/core/portal"
	"github.com/trezcool/masomo-core/core/school"
)

// addUser registers a user (and its student or teacher record) as the system actor.
func (cli *commandLine) addUser(ctx context.Context, name, email string, role school.Role, pwd string) error {
	if err := cli.open(); err != nil {
		return err
	}
	usr, err := cli.svc.RegisterUser(ctx, school.System, portal.NewUser{
		Name:     name,
		Email:    email,
		Password: pwd,
		Role:     role,
	})
	if err != nil {
		return err
	}
	cli.logger.Info("user created", usr.ID, usr.Email)
	return nil
}
