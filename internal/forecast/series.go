package forecast

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Point is one calendar day of demand.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is a daily demand series for one item (or the whole portfolio).
// Dates are UTC midnights, contiguous and strictly increasing.
type Series struct {
	ItemID    string  `json:"item_id"`
	Aggregate bool    `json:"aggregate,omitempty"`
	Points    []Point `json:"points"`
}

// Key names the stored model for this series.
func (s Series) Key() ModelKey {
	return ModelKey{ItemID: s.ItemID, Aggregate: s.Aggregate}
}

func (s Series) Len() int { return len(s.Points) }

func (s Series) Empty() bool { return len(s.Points) == 0 }

// Total returns the summed demand over the whole series.
func (s Series) Total() float64 {
	var total float64
	for _, p := range s.Points {
		total += p.Value
	}
	return total
}

// First and Last return the bounding dates; both are zero for an empty series.
func (s Series) First() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.Points[0].Date
}

func (s Series) Last() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}

// Validate checks the contiguity invariant.
func (s Series) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		if gap := DaysBetween(s.Points[i-1].Date, s.Points[i].Date); gap != 1 {
			return fmt.Errorf("series %s: gap of %d days at %s", s.ItemID, gap, s.Points[i].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Fingerprint identifies the exact training data so a stored model can be reused.
func (s Series) Fingerprint(params Params) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%t|%s|%g|%g|", s.ItemID, s.Aggregate, params.SeasonalityMode, params.ChangepointScale, params.IntervalWidth)
	for _, p := range s.Points {
		h.Write([]byte(p.Date.Format("20060102")))
		h.Write([]byte(strconv.FormatFloat(p.Value, 'g', -1, 64)))
		h.Write([]byte{';'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Day truncates t to its calendar date in loc and returns that date as a UTC midnight,
// dropping the zone so dates from different sources compare directly.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of days from a to b (both UTC midnights).
func DaysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// AddDays shifts a UTC midnight by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}
