// Package scheduler triggers forecast runs on a cron cadence and, between
// cadence ticks, whenever the change gate reports new data.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/pipeline"
)

// Trigger starts one run.
type Trigger interface {
	TriggerRun(ctx context.Context, opts pipeline.Options) (*domain.Run, error)
}

type Config struct {
	Cron         string
	PollInterval time.Duration
	// ForceCadence makes cadence runs bypass the change gate.
	ForceCadence bool
	Location     *time.Location
}

type Scheduler struct {
	trigger Trigger
	cfg     Config
	cron    *cron.Cron
}

func New(trigger Trigger, cfg Config) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
	)
	s := &Scheduler{trigger: trigger, cfg: cfg, cron: c}

	if cfg.Cron != "" {
		if _, err := c.AddFunc(cfg.Cron, func() {
			s.fire(context.Background(), pipeline.Options{Force: cfg.ForceCadence, Trigger: "schedule"})
		}); err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Cron, err)
		}
	}
	return s, nil
}

// Start runs the cadence and the change poller until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	log.Info().Str("cron", s.cfg.Cron).Dur("poll_interval", s.cfg.PollInterval).Msg("scheduler started")

	if s.cfg.PollInterval > 0 {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				s.fire(ctx, pipeline.Options{Trigger: "poll"})
			}
		}
	} else {
		<-ctx.Done()
	}

	<-s.cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// Next reports when the cadence fires next, or the zero time when no cadence is configured.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().In(s.cfg.Location))
}

func (s *Scheduler) fire(ctx context.Context, opts pipeline.Options) {
	run, err := s.trigger.TriggerRun(ctx, opts)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		log.Debug().Str("trigger", opts.Trigger).Msg("run already in progress, not starting another")
	case err != nil:
		log.Error().Err(err).Str("trigger", opts.Trigger).Msg("scheduled run failed")
	case run.Status != domain.RunSkipped:
		log.Info().Str("trigger", opts.Trigger).Str("run_id", run.ID).Str("status", string(run.Status)).Msg("scheduled run finished")
	}
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
