package restock

import (
	"context"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/repository"
)

// Decision is the outcome of a change check.
type Decision struct {
	Run    bool
	Reason string
	domain.SourceTimestamps
}

// Gate skips runs when nothing changed since the last published recommendation set.
type Gate struct {
	store repository.Store
}

func NewGate(store repository.Store) *Gate {
	return &Gate{store: store}
}

func (g *Gate) Check(ctx context.Context) (Decision, error) {
	ts, err := repository.SourceTimestamps(ctx, g.store)
	if err != nil {
		return Decision{}, err
	}
	return Decide(ts), nil
}

// Decide runs when there is no previous recommendation or any source timestamp is strictly newer.
func Decide(ts domain.SourceTimestamps) Decision {
	d := Decision{SourceTimestamps: ts}

	switch {
	case ts.LatestRecommendationAt == nil:
		d.Run, d.Reason = true, "no previous recommendations"
	case newer(ts.LatestSaleAt, *ts.LatestRecommendationAt):
		d.Run, d.Reason = true, "new sales"
	case newer(ts.LatestItemUpdateAt, *ts.LatestRecommendationAt):
		d.Run, d.Reason = true, "item updates"
	default:
		d.Reason = "no changes"
	}
	return d
}

func newer(t *time.Time, than time.Time) bool {
	return t != nil && t.After(than)
}
