package main

import (
	"context"
	"strings"

	statedb "github.com/trezcool/academia/storage/database/state"
)

// clearData deletes every record after two y/N prompts and the typed confirmation phrase.
func (cli *commandLine) clearData() error {
	prompts := []string{
		"This deletes every student, session, message and material. Continue? [y/N] ",
		"This cannot be undone. Are you sure? [y/N] ",
	}
	for _, p := range prompts {
		cli.printf("%s", p)
		answer, err := readLineFunc()
		if err != nil {
			return err
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			return errAborted
		}
	}

	cli.printf("Type %s to confirm: ", statedb.ClearAllConfirmation)
	phrase, err := readLineFunc()
	if err != nil {
		return err
	}
	if phrase != statedb.ClearAllConfirmation {
		return errAborted
	}

	if err := cli.app.DB.ClearAll(context.Background()); err != nil {
		return err
	}
	cli.app.Logger.Warn("all data cleared from the admin CLI")
	cli.printf("All data was deleted.\n")
	return nil
}
