package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SkippedItem names an item that fell back to a non-forecast policy and why.
type SkippedItem struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

// SkippedItems is stored as a JSON column.
type SkippedItems []SkippedItem

func (s SkippedItems) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *SkippedItems) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into SkippedItems", src)
	}
}

// Run tracks a single execution of the forecast pipeline.
type Run struct {
	ID                     string       `json:"id" db:"id"`
	Trigger                string       `json:"trigger" db:"trigger"`
	Status                 RunStatus    `json:"status" db:"status"`
	AsOf                   time.Time    `json:"as_of" db:"as_of"`
	ItemsTotal             int          `json:"items_total" db:"items_total"`
	Recommendations        int          `json:"recommendations" db:"recommendations"`
	SkippedItems           SkippedItems `json:"skipped_items" db:"skipped_items"`
	DroppedEvents          int          `json:"dropped_events" db:"dropped_events"`
	AggregateMonthlyDemand *float64     `json:"aggregate_monthly_demand,omitempty" db:"aggregate_monthly_demand"`
	StartedAt              time.Time    `json:"started_at" db:"started_at"`
	CompletedAt            *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage           string       `json:"error_message,omitempty" db:"error_message"`
}
