package main

import (
	"context"

	"github.com/trezcool/academia/core/session"
	"github.com/trezcool/academia/core/settings"
)

// seed saves the default settings and creates a sample session, unless sessions already exist.
func (cli *commandLine) seed() error {
	ctx := context.Background()

	sessions, err := cli.app.SessionSvc.Query(ctx, nil)
	if err != nil {
		return err
	}
	if len(sessions) > 0 {
		cli.printf("%d sessions found, nothing to seed.\n", len(sessions))
		return nil
	}

	if _, err = cli.app.SettingsSvc.Update(ctx, settings.Patch{}); err != nil {
		return err
	}
	sess, err := cli.app.SessionSvc.Create(ctx, session.NewSession{
		Name:        "Leadership Bootcamp",
		Description: "Two weeks to grow as a leader.",
		Status:      session.StatusUpcoming,
		Price:       "Free",
	})
	if err != nil {
		return err
	}
	cli.printf("Created session %q (%s).\n", sess.Name, sess.ID)
	return nil
}
