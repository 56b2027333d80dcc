package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/schoolportal/core/account"
	"github.com/trezcool/schoolportal/storage/database/migrations"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	school     *sqlx.DB
	credential *sqlx.DB
	svc        *account.Service
	out        io.Writer
}

func (cli *commandLine) printf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, a...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  migrate [-db credential|school] COMMAND [ARGS] - run a goose migration command\n")
	cli.printf("  adduser -kind KIND -username USERNAME [-gender GENDER] - create an account\n")
	cli.printf("  resetpassword -kind KIND -username USERNAME - reset an account's password\n")
	cli.printf("  setstatus -kind teacher|staff -username USERNAME -status active|standby - (de)activate an account\n")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		migrateCmd := cli.newFlagSet("migrate")
		migrateDB := migrateCmd.String("db", "credential", "The database to migrate: credential or school.")
		if err := migrateCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if migrateCmd.NArg() == 0 {
			migrateCmd.Usage()
			return errHelp
		}
		return cli.migrate(*migrateDB, migrateCmd.Args())

	case "adduser":
		addUserCmd := cli.newFlagSet("adduser")
		kind := addUserCmd.String("kind", "", "The account kind: admin, teacher or staff.")
		uname := addUserCmd.String("username", "", "The account's username. The password will be prompted next.")
		gender := addUserCmd.String("gender", "", "Male, Female or Other. Required for teachers and staff.")
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *kind == "" || *uname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil || pwd == "" {
			if err == nil {
				addUserCmd.Usage()
				err = errHelp
			}
			return err
		}
		return cli.addUser(*kind, *uname, pwd, *gender)

	case "resetpassword":
		resetPasswordCmd := cli.newFlagSet("resetpassword")
		kind := resetPasswordCmd.String("kind", "", "The account kind: admin, teacher or staff.")
		uname := resetPasswordCmd.String("username", "", "The account's username. The password will be prompted next.")
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *kind == "" || *uname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil || pwd == "" {
			if err == nil {
				resetPasswordCmd.Usage()
				err = errHelp
			}
			return err
		}
		return cli.resetPassword(*kind, *uname, pwd)

	case "setstatus":
		setStatusCmd := cli.newFlagSet("setstatus")
		kind := setStatusCmd.String("kind", "", "The account kind: teacher or staff.")
		uname := setStatusCmd.String("username", "", "The account's username.")
		status := setStatusCmd.String("status", "", "active or standby.")
		if err := setStatusCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *kind == "" || *uname == "" || *status == "" {
			setStatusCmd.Usage()
			return errHelp
		}
		return cli.setStatus(*kind, *uname, *status)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword() (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) dbNamed(name string) (*sqlx.DB, string, error) {
	switch name {
	case "credential":
		return cli.credential, migrations.CredentialDir, nil
	case "school":
		return cli.school, migrations.SchoolDir, nil
	default:
		return nil, "", fmt.Errorf("%q: no such database", name)
	}
}
