package restock

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
)

// datedEvent is a sale event that passed validation, pinned to its calendar day.
type datedEvent struct {
	day   time.Time
	lines []domain.SaleLine
}

// Aggregator turns sale events into zero-filled daily demand series.
type Aggregator struct {
	loc *time.Location
}

func NewAggregator(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{loc: loc}
}

// Clean drops malformed events and returns the rest with their calendar day.
// An event is malformed when its timestamp cannot be read, it has no lines,
// or any line lacks an item id or has a negative quantity.
func (a *Aggregator) Clean(events []domain.SaleEvent) ([]datedEvent, int) {
	out := make([]datedEvent, 0, len(events))
	dropped := 0

	for _, e := range events {
		orderedAt := e.OrderedAt
		if orderedAt.IsZero() {
			parsed, err := domain.ParseTimestamp(e.RawOrderedAt, a.loc)
			if err != nil {
				log.Warn().Str("event_id", e.ID).Str("raw_ordered_at", e.RawOrderedAt).Err(err).
					Msg("dropping sale event with unparsable date")
				dropped++
				continue
			}
			orderedAt = parsed
		}

		if reason := malformedLines(e.Lines); reason != "" {
			log.Warn().Str("event_id", e.ID).Str("reason", reason).Msg("dropping malformed sale event")
			dropped++
			continue
		}

		out = append(out, datedEvent{day: forecast.Day(orderedAt, a.loc), lines: e.Lines})
	}

	return out, dropped
}

func malformedLines(lines []domain.SaleLine) string {
	if len(lines) == 0 {
		return "no lines"
	}
	for _, l := range lines {
		if l.ItemID == "" {
			return "line without item id"
		}
		if l.Quantity < 0 {
			return "negative quantity"
		}
	}
	return ""
}

// DailySeries builds the series for one item. No matching events yields an empty series.
func (a *Aggregator) DailySeries(itemID string, events []datedEvent) forecast.Series {
	return reindex(itemID, events, func(l domain.SaleLine) bool { return l.ItemID == itemID })
}

// AggregateSeries sums every line of every event into one portfolio series.
func (a *Aggregator) AggregateSeries(events []datedEvent) forecast.Series {
	s := reindex(forecast.AggregateKey, events, func(domain.SaleLine) bool { return true })
	s.Aggregate = true
	return s
}

// SeriesByItem builds the series of every item in one pass.
func (a *Aggregator) SeriesByItem(events []datedEvent) map[string]forecast.Series {
	byItem := make(map[string]map[time.Time]float64)
	for _, e := range events {
		for _, l := range e.lines {
			days, ok := byItem[l.ItemID]
			if !ok {
				days = make(map[time.Time]float64)
				byItem[l.ItemID] = days
			}
			days[e.day] += float64(l.Quantity)
		}
	}

	out := make(map[string]forecast.Series, len(byItem))
	for itemID, days := range byItem {
		out[itemID] = fill(itemID, days)
	}
	return out
}

func reindex(itemID string, events []datedEvent, match func(domain.SaleLine) bool) forecast.Series {
	days := make(map[time.Time]float64)
	for _, e := range events {
		for _, l := range e.lines {
			if match(l) {
				days[e.day] += float64(l.Quantity)
			}
		}
	}
	return fill(itemID, days)
}

// fill expands sparse day totals into a contiguous series from the first to the last day.
func fill(itemID string, days map[time.Time]float64) forecast.Series {
	s := forecast.Series{ItemID: itemID}
	if len(days) == 0 {
		return s
	}

	keys := make([]time.Time, 0, len(days))
	for d := range days {
		keys = append(keys, d)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	first, last := keys[0], keys[len(keys)-1]
	s.Points = make([]forecast.Point, 0, forecast.DaysBetween(first, last)+1)
	for d := first; !d.After(last); d = forecast.AddDays(d, 1) {
		s.Points = append(s.Points, forecast.Point{Date: d, Value: days[d]})
	}
	return s
}
