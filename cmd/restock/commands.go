package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/restock-forecast/internal/api"
	"github.com/andresuchdata/restock-forecast/internal/config"
	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/drive"
	"github.com/andresuchdata/restock-forecast/internal/ingest"
	"github.com/andresuchdata/restock-forecast/internal/pipeline"
	"github.com/andresuchdata/restock-forecast/internal/repository/postgres"
	"github.com/andresuchdata/restock-forecast/internal/scheduler"
)

func runOnce(c *cli.Context, cfg *config.Config) error {
	a, err := newApp(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.service.TriggerRun(c.Context, pipeline.Options{Force: c.Bool("force"), Trigger: "cli"})
	if err != nil {
		return err
	}

	if run.Status == domain.RunSkipped {
		fmt.Println("no new sales or inventory changes; recommendations are current")
		return nil
	}
	fmt.Printf("run %s %s: %d recommendations, %d skipped items, %d dropped sale events\n",
		run.ID, run.Status, run.Recommendations, len(run.SkippedItems), run.DroppedEvents)
	for _, s := range run.SkippedItems {
		fmt.Printf("  skipped %s: %s\n", s.ItemID, s.Reason)
	}
	return nil
}

func serve(c *cli.Context, cfg *config.Config) error {
	ctx := c.Context
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.NewRouter(&api.Services{
		Recommendations: a.service,
		Importer:        a.importer,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if !c.Bool("no-scheduler") {
		sched, err := scheduler.New(a.service, scheduler.Config{
			Cron:         cfg.Schedule.Cron,
			PollInterval: cfg.Schedule.ChangePollInterval,
			ForceCadence: c.Bool("force-schedule"),
			Location:     cfg.Forecast.Location(),
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			sched.Start(ctx)
			return nil
		})
	}

	return g.Wait()
}

func migrate(c *cli.Context, cfg *config.Config) error {
	db, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(c.Context); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	applied, err := postgres.Migrate(c.Context, db)
	if err != nil {
		return err
	}
	fmt.Printf("%d migration(s) applied\n", applied)
	return nil
}

func importFiles(c *cli.Context, cfg *config.Config) error {
	kind, err := ingest.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}

	files := c.StringSlice("file")
	if c.Bool("drive") {
		downloaded, err := downloadFromDrive(c.Context, cfg, c.String("drive-folder"))
		if err != nil {
			return err
		}
		files = append(files, downloaded...)
	}
	if len(files) == 0 {
		return fmt.Errorf("nothing to import: pass --file or --drive")
	}

	a, err := newApp(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range files {
		summary, err := a.importer.ImportFile(c.Context, kind, path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d records, %d new, %d skipped rows\n", summary.File, summary.Records, summary.Inserted, summary.Skipped)
	}
	return nil
}

func downloadFromDrive(ctx context.Context, cfg *config.Config, folder string) ([]string, error) {
	svc, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
	if err != nil {
		return nil, err
	}

	folderID := folder
	if folderID == "" {
		folderID = cfg.Drive.FolderID
	}
	if strings.Contains(folderID, "/") {
		if folderID, err = svc.FindFolderByPath(ctx, folderID); err != nil {
			return nil, err
		}
	}

	return drive.NewDownloader(svc).DownloadFolder(ctx, drive.DownloadOptions{
		FolderID:    folderID,
		DownloadDir: cfg.Drive.DownloadDir,
	})
}

func printRecommendations(c *cli.Context, cfg *config.Config) error {
	a, err := newApp(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	recs, err := a.service.List(c.Context)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no recommendations published yet")
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tSTOCK\tDAILY AVG\tDEPLETION\tMONTHLY\tORDER\tPOLICY")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\t%.1f\t%d\t%s\n",
			r.ItemID, r.CurrentStock, r.DailyAverage, depletionLabel(r.Depletion()), r.MonthlyDemand, r.OrderQuantity, r.Policy)
	}
	return w.Flush()
}

func depletionLabel(d domain.Depletion) string {
	if d.Status == domain.DepletionDate && d.Date != nil {
		return d.Date.Format("2006-01-02")
	}
	return string(d.Status)
}
