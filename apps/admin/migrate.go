package main

import (
	"context"

	pgremote "github.com/trezcool/academia/storage/remote/postgres"
)

var gooseRunFunc = pgremote.Migrate // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(context.Background(), cli.sqlDB, args[0], arguments...)
}
