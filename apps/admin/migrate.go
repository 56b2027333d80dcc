package main

import (
	"github.com/trezcool/schoolportal/storage/database"
)

var gooseRunFunc = database.RunGoose // mockable

func (cli *commandLine) migrate(dbName string, args []string) error {
	db, dir, err := cli.dbNamed(dbName)
	if err != nil {
		return err
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], db.DB, dir, arguments...)
}
