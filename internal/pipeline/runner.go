package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/repository"
)

// Runner executes a Job single-flight and records every run that does work.
type Runner struct {
	job    Job
	runs   repository.RunRepository
	locker Locker
	cfg    Config
	now    func() time.Time
}

func NewRunner(job Job, runs repository.RunRepository, locker Locker, cfg Config) *Runner {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Runner{
		job:    job,
		runs:   runs,
		locker: locker,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run acquires the run lock, consults the change gate unless opts.Force, and executes the job.
// A gate skip returns a run with status skipped that is not persisted.
func (r *Runner) Run(ctx context.Context, opts Options) (*domain.Run, error) {
	unlock, err := r.locker.TryLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if opts.Trigger == "" {
		opts.Trigger = "manual"
	}
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = r.now()
	}

	if !opts.Force {
		var changed bool
		err := Retry(ctx, r.cfg.RetryAttempts, r.cfg.RetryBackoff, "change gate", func() error {
			var err error
			changed, err = r.job.Changed(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("change detection failed: %w", err)
		}
		if !changed {
			log.Info().Str("job", r.job.Name()).Str("trigger", opts.Trigger).Msg("no new data since last run, skipping")
			return &domain.Run{Trigger: opts.Trigger, Status: domain.RunSkipped, AsOf: asOf, StartedAt: r.now()}, nil
		}
	}

	run := &domain.Run{
		ID:        uuid.NewString(),
		Trigger:   opts.Trigger,
		Status:    domain.RunPending,
		AsOf:      asOf,
		StartedAt: r.now(),
	}
	if err := r.persist(ctx, "create run", func() error { return r.runs.CreateRun(ctx, run) }); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	run.Status = domain.RunProcessing
	if err := r.persist(ctx, "update run", func() error { return r.runs.UpdateRun(ctx, run) }); err != nil {
		return nil, fmt.Errorf("failed to update run: %w", err)
	}

	logger := log.With().Str("job", r.job.Name()).Str("run_id", run.ID).Logger()
	logger.Info().Str("trigger", run.Trigger).Time("as_of", asOf).Msg("run started")

	result, execErr := r.job.Execute(ctx, run.ID, asOf)

	completed := r.now()
	run.CompletedAt = &completed
	if execErr != nil {
		run.Status = domain.RunFailed
		run.ErrorMessage = execErr.Error()
	} else {
		run.Status = domain.RunCompleted
		run.ItemsTotal = result.ItemsTotal
		run.Recommendations = result.Recommendations
		run.SkippedItems = result.SkippedItems
		run.DroppedEvents = result.DroppedEvents
		run.AggregateMonthlyDemand = result.AggregateMonthlyDemand
	}

	// Use a fresh context so a cancelled caller still gets the outcome recorded.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := r.persist(recordCtx, "record run", func() error { return r.runs.UpdateRun(recordCtx, run) }); err != nil {
		logger.Error().Err(err).Msg("failed to record run outcome")
	}

	if execErr != nil {
		logger.Error().Err(execErr).Dur("took", completed.Sub(run.StartedAt)).Msg("run failed")
		return run, execErr
	}

	logger.Info().
		Int("items", run.ItemsTotal).
		Int("recommendations", run.Recommendations).
		Int("skipped", len(run.SkippedItems)).
		Dur("took", completed.Sub(run.StartedAt)).
		Msg("run completed")
	return run, nil
}

// Latest returns the most recent recorded run.
func (r *Runner) Latest(ctx context.Context) (*domain.Run, error) {
	return r.runs.LatestRun(ctx)
}

func (r *Runner) persist(ctx context.Context, what string, op func() error) error {
	return Retry(ctx, r.cfg.RetryAttempts, r.cfg.RetryBackoff, what, func() error {
		err := op()
		if errors.Is(err, repository.ErrNotFound) {
			return Permanent(err)
		}
		return err
	})
}
