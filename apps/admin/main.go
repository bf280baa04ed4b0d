package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/academia/apps/container"
	"github.com/trezcool/academia/core"
	pgremote "github.com/trezcool/academia/storage/remote/postgres"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	appLogger := container.NewLogger(conf, "ADMIN")
	ctx := context.Background()

	cli := commandLine{conf: conf, out: os.Stdout}
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		// migrations only need the database
		backend, err := pgremote.Open(ctx, conf.Database, appLogger)
		errAndDie(err)
		defer backend.Close()
		cli.sqlDB = backend.DB()
	} else {
		db, err := container.OpenDB(ctx, conf, appLogger)
		errAndDie(err)
		defer db.Close()
		cli.app = container.New(conf, appLogger, db, container.NewEmailService(conf, appLogger))
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
