package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"pressfeed/db"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing posts that are old.

		Remove posts that are older than the retention window from the
		database. This is to keep the database size down and to keep the feed
		fresh.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "feed.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"PRESSFEED_DATABASE"},
			},
			&cli.IntFlag{
				Name:    "retention-days",
				Value:   90,
				Usage:   "Remove posts older than this many days",
				EnvVars: []string{"PRESSFEED_RETENTION_DAYS"},
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			fmt.Println("Database configured: ", database)

			store, err := db.NewDB(database)
			if err != nil {
				return err
			}
			defer store.Close()

			retention := time.Duration(ctx.Int("retention-days")) * 24 * time.Hour
			evicted, err := store.Tidy(ctx.Context, retention)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d posts\n", len(evicted))
			return nil
		},
	}
}
