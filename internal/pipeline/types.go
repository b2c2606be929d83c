package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
)

// ErrRunInProgress is returned when another run holds the run lock.
var ErrRunInProgress = errors.New("a forecast run is already in progress")

// Job is a batch computation the Runner executes under the run lock.
type Job interface {
	// Name returns the unique identifier for this job
	Name() string

	// Changed reports whether source data moved since the last published result.
	Changed(ctx context.Context) (bool, error)

	// Execute performs one full run stamped with runID.
	Execute(ctx context.Context, runID string, asOf time.Time) (*Result, error)
}

// Result is what a job reports back for run tracking.
type Result struct {
	ItemsTotal             int
	Recommendations        int
	SkippedItems           []domain.SkippedItem
	DroppedEvents          int
	AggregateMonthlyDemand *float64
}

// Options control a single invocation.
type Options struct {
	Force   bool
	Trigger string
	AsOf    time.Time
}

// Config holds configuration for the runner.
type Config struct {
	Name          string
	RetryAttempts int           // Number of retries on failure
	RetryBackoff  time.Duration // Initial backoff between retries
}

// DefaultConfig returns sensible defaults
func DefaultConfig(name string) Config {
	return Config{
		Name:          name,
		RetryAttempts: 3,
		RetryBackoff:  500 * time.Millisecond,
	}
}
