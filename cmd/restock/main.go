package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/restock-forecast/internal/config"
	"github.com/andresuchdata/restock-forecast/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "restock",
		Usage: "Forecast item demand and publish restock recommendations",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the forecast pipeline once",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Run even when no sales or inventory changed since the last published set",
					},
				},
				Action: func(c *cli.Context) error { return runOnce(c, cfg) },
			},
			{
				Name:  "serve",
				Usage: "Serve the recommendations API and run on the configured schedule",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force-schedule",
						Usage: "Scheduled runs bypass the change gate",
					},
					&cli.BoolFlag{
						Name:  "no-scheduler",
						Usage: "Serve the API only",
					},
				},
				Action: func(c *cli.Context) error { return serve(c, cfg) },
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations",
				Action: func(c *cli.Context) error { return migrate(c, cfg) },
			},
			{
				Name:  "import",
				Usage: "Import sale or inventory exports (CSV or XLSX)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "sales or items",
						Value: "sales",
					},
					&cli.StringSliceFlag{
						Name:  "file",
						Usage: "Local export to import (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "drive",
						Usage: "Download exports from the configured Google Drive folder first",
					},
					&cli.StringFlag{
						Name:    "drive-folder",
						Usage:   "Drive folder id, or a slash-separated path from the Drive root",
						EnvVars: []string{"SALES_DRIVE_FOLDER_ID"},
					},
				},
				Action: func(c *cli.Context) error { return importFiles(c, cfg) },
			},
			{
				Name:  "recommendations",
				Usage: "Print the published recommendation set",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print JSON instead of a table",
					},
				},
				Action: func(c *cli.Context) error { return printRecommendations(c, cfg) },
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("restock failed")
	}
}
