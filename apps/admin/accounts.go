package main

import (
	"context"

	"github.com/trezcool/schoolportal/core/account"
)

func (cli *commandLine) addUser(kind, uname, pwd, gender string) error {
	k, err := account.ParseKind(kind)
	if err != nil {
		return err
	}
	acc, err := cli.svc.Create(context.Background(), account.NewAccount{
		Kind:     k,
		Username: uname,
		Password: pwd,
		Gender:   gender,
	})
	if err != nil {
		return err
	}
	cli.printf("%s %q created (id %d)\n", acc.Kind, acc.Username, acc.ID)
	return nil
}

func (cli *commandLine) resetPassword(kind, uname, pwd string) error {
	k, err := account.ParseKind(kind)
	if err != nil {
		return err
	}
	acc, err := cli.svc.ResetPassword(context.Background(), k, account.PasswordReset{Username: uname, Password: pwd})
	if err != nil {
		return err
	}
	cli.printf("password of %s %q updated\n", acc.Kind, acc.Username)
	return nil
}

// setStatus leaves the password untouched, so reactivated accounts log in with their previous password.
func (cli *commandLine) setStatus(kind, uname, status string) error {
	ctx := context.Background()
	k, err := account.ParseKind(kind)
	if err != nil {
		return err
	}
	acc, err := cli.svc.GetByUsername(ctx, k, uname)
	if err != nil {
		return err
	}
	if acc, err = cli.svc.SetStatus(ctx, k, acc.ID, account.StatusUpdate{Status: account.Status(status)}); err != nil {
		return err
	}
	cli.printf("%s %q is now %s\n", acc.Kind, acc.Username, acc.Status)
	return nil
}
