package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/znz-systems/coldpipe/internal/auth"
	"github.com/znz-systems/coldpipe/internal/campaign"
	"github.com/znz-systems/coldpipe/internal/config"
	"github.com/znz-systems/coldpipe/internal/database"
	"github.com/znz-systems/coldpipe/internal/ingest"
	"github.com/znz-systems/coldpipe/internal/queue"
	"github.com/znz-systems/coldpipe/internal/ratelimit"
	"github.com/znz-systems/coldpipe/internal/smartlead"
	"github.com/znz-systems/coldpipe/internal/store/postgres"
	"github.com/znz-systems/coldpipe/migrations"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	return &cli.App{
		Name:    "coldpipe",
		Usage:   "Contact enrichment and outreach pipeline",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			enqueueCmd(),
			campaignCmd(),
			tokenCmd(),
		},
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the ingress API, trigger consumer, pipeline workers and stale-run sweeper",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireProviders(); err != nil {
				return err
			}
			ctx, stop := signalContext(c.Context)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply or roll back database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					return database.RunMigrations(migrations.FS, cfg.DatabaseURL)
				},
			},
			{
				Name:  "down",
				Usage: "Roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "Number of migrations to roll back"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					return database.RollbackMigrations(migrations.FS, cfg.DatabaseURL, c.Int("steps"))
				},
			},
		},
	}
}

func enqueueCmd() *cli.Command {
	return &cli.Command{
		Name:      "enqueue",
		Usage:     "Queue every valid contact of a CSV file for a campaign",
		ArgsUsage: "<contacts.csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "campaign", Aliases: []string{"c"}, Required: true, Usage: "Internal campaign id"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one CSV file")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			f, err := os.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()

			parsed, err := ingest.ParseCSV(f)
			if err != nil {
				return fmt.Errorf("parse %s: %w", c.Args().First(), err)
			}

			mq, err := queue.Dial(cfg.AMQPURL, cfg.QueueName)
			if err != nil {
				return err
			}
			defer mq.Close()

			d := ingest.NewDispatcher(mq.Producer(), nil, ingest.DispatcherOptions{
				BatchSize:  cfg.IngestBatch,
				BatchDelay: cfg.IngestBatchGap,
			})
			report, err := d.Dispatch(c.Context, parsed, c.String("campaign"))
			if err != nil {
				return err
			}
			return outputJSON(report)
		},
	}
}

func campaignCmd() *cli.Command {
	return &cli.Command{
		Name:  "campaign",
		Usage: "Manage campaigns",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a Smartlead campaign and its internal record",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Campaign name"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					if cfg.SmartleadAPIKey == "" {
						return fmt.Errorf("SMARTLEAD_API_KEY is required")
					}

					db, err := postgres.NewDB(cfg.DatabaseURL, postgres.PoolOptions{MaxOpenConns: 2, MaxIdleConns: 1})
					if err != nil {
						return err
					}
					defer db.Close()

					limiter := ratelimit.NewLimiter(cfg.ProviderRPS, 1)
					dir := campaign.NewDirectory(
						postgres.NewCampaignStore(db),
						smartlead.NewClient(cfg.SmartleadAPIKey, limiter.For("smartlead")),
					)
					created, err := dir.Create(c.Context, c.String("name"))
					if err != nil {
						return err
					}
					return outputJSON(created)
				},
			},
		},
	}
}

func tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Generate an ingress API token and the hash to put in INGRESS_TOKEN_HASH",
		Action: func(c *cli.Context) error {
			token, err := auth.GenerateToken()
			if err != nil {
				return err
			}
			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			return outputJSON(map[string]string{"token": token, "hash": hash})
		},
	}
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
