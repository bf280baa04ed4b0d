package main

import (
	"context"
)

// edit runs one editor command and prints its outcome.
func (cli *commandLine) edit(text string) error {
	res := cli.app.Editor.Process(context.Background(), text)
	cli.printf("%s\n", res.Reply)
	for _, c := range res.Changes {
		status := "applied"
		if !c.Applied {
			status = "not applied"
		}
		cli.printf("  - [%s] %s (%s)\n", c.Kind, c.Description, status)
	}
	cli.printf("outcome: %s\n", res.Outcome)
	return nil
}
