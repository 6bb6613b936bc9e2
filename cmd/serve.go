package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"pressfeed/config"
	"pressfeed/db"
	"pressfeed/feeds"
	"pressfeed/index"
	"pressfeed/models"
	"pressfeed/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the publishing API",
		Description: `Starts the pressfeed HTTP server.

	Runs pending migrations, seeds the interests from the configuration file,
	rehydrates the in-memory tag index from the database and serves the
	publisher, interest, post and feed route families.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "feed.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"PRESSFEED_DATABASE"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"PRESSFEED_PORT"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML configuration file with feed tunables and seeded interests",
				EnvVars: []string{"PRESSFEED_CONFIG"},
			},
		},
		Action: func(ctx *cli.Context) error {
			fmt.Println("Starting pressfeed...")

			cfg := config.Default()
			if path := ctx.String("config"); path != "" {
				loaded, err := config.LoadConfig(path)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			database := ctx.String("database")
			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			store, err := db.NewDB(database)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := seedInterests(ctx.Context, store, cfg); err != nil {
				return err
			}

			// Rehydrate the tag index from the database
			idx := index.New(store)
			if err := store.ReplayPosts(ctx.Context, idx.Index); err != nil {
				return fmt.Errorf("replay failed: %w", err)
			}

			scorer := feeds.NewScorer(feeds.NewDecayPolicy(cfg.HalfLife()))
			assembler := feeds.NewAssembler(idx, scorer, feeds.AssemblerConfig{
				FanoutLimit: cfg.Feed.FanoutLimit,
				MaxPageSize: cfg.Feed.MaxPageSize,
			})

			// Channel for engagement and retraction events awaiting persistence
			events := make(chan interface{}, 1024)

			writerCtx, stopWriter := context.WithCancel(ctx.Context)
			defer stopWriter()

			writer := db.NewWriter(store, events, cfg.Retention())
			writer.Evicted = func(postId int64) {
				if err := idx.Retract(postId); err != nil {
					log.WithFields(log.Fields{"post": postId, "error": err}).Warn("Evicted post not in index")
				}
			}

			app := server.Server(&server.ServerConfig{
				DB:        store,
				Index:     idx,
				Assembler: assembler,
				Events:    events,
			})

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			var wg sync.WaitGroup

			wg.Add(1)
			go func() {
				defer wg.Done()
				writer.Run(writerCtx)
			}()

			wg.Add(1)
			go func() {
				defer wg.Done()
				fmt.Println("Starting server...")
				if err := app.Listen(fmt.Sprintf(":%d", ctx.Int("port"))); err != nil {
					log.Panic(err)
				}
			}()

			<-c
			fmt.Println("Gracefully shutting down...")
			if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
				log.Error("Error shutting down server ", err)
			}
			stopWriter()
			wg.Wait()

			fmt.Println("Done!")
			return nil
		},
	}
}

// seedInterests creates the configured interests that do not exist yet.
func seedInterests(ctx context.Context, store *db.DB, cfg *config.Config) error {
	for _, interest := range cfg.Interests {
		if store.HasInterest(interest.Name) {
			continue
		}
		_, err := store.CreateInterest(ctx, models.Interest{
			Name:        interest.Name,
			Description: interest.Description,
			Weight:      interest.Weight,
		})
		if err != nil {
			return fmt.Errorf("error seeding interest %q: %w", interest.Name, err)
		}
		log.WithFields(log.Fields{"interest": interest.Name, "weight": interest.Weight}).Info("Seeded interest")
	}
	return nil
}
