package cmd

import (
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "pressfeed",
		Usage: "A publishing API serving interest-based feeds",
		Description: `Pressfeed stores posts created by publishers, tags them with
		interests and assembles ranked, deduplicated feeds for consumers
		subscribed to a set of interests.

		Posts are persisted in an SQLite database and served from an in-memory
		tag index via an HTTP API.

		Flags can generally be set via environment variables, e.g.:

		--database => PRESSFEED_DATABASE=feed.db
		--port => PRESSFEED_PORT=3000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}
