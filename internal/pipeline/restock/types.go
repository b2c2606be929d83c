package restock

import (
	"fmt"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/forecast"
)

// Reasons an item falls back to a non-forecast policy.
const (
	ReasonNoSales          = "no_sales"
	ReasonInsufficientData = "insufficient_data"
	ReasonFitFailed        = "fit_failed"
)

// ItemError is a per-item failure. It is collected into the run report and never aborts the batch.
type ItemError struct {
	ItemID string
	Reason string
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %s: %v", e.ItemID, e.Reason, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// ForecastSet maps item id to its forecast. An absent key means no usable model,
// and the item takes the degraded path.
type ForecastSet map[string]forecast.Forecast

// Config holds the tunables of the restock pipeline.
type Config struct {
	HorizonDays   int
	Workers       int
	Aggregate     bool
	ReuseModels   bool
	Location      *time.Location
	RetryAttempts int
	RetryBackoff  time.Duration
	Policy        Policy
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		HorizonDays:   30,
		Workers:       4,
		Aggregate:     true,
		ReuseModels:   true,
		Location:      time.UTC,
		RetryAttempts: 3,
		RetryBackoff:  500 * time.Millisecond,
		Policy:        DefaultPolicy(),
	}
}
