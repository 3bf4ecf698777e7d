package main

import (
	"os"

	"github.com/andresuchdata/autopo-replenish/pkg/logger"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "replenish",
		Usage: "Forecast stock coverage and compute purchase requirements",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-url",
				Usage:   "Database connection string (pgx)",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "Use an in-process store instead of the database; combine with --seed-dir",
			},
			&cli.StringFlag{
				Name:  "seed-dir",
				Usage: "Import every CSV under this directory before running the command",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override LOG_LEVEL (debug, info, warn, error)",
			},
		},
		Before: initRuntime,
		After:  closeRuntime,
		Commands: []*cli.Command{
			coverageCommand(),
			purchaseCommand(),
			batchCommand(),
			importCommand(),
			refreshCommand(),
			migrateCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("replenish failed")
	}
}
