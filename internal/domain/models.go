package domain

import "time"

// Item is a stocked item as held by the inventory store.
type Item struct {
	ID              string     `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Quantity        int        `json:"quantity" db:"quantity"`
	LastRestockedAt *time.Time `json:"last_restocked_at,omitempty" db:"last_restocked_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// SaleLine is one (item, quantity) pair of a sale event.
type SaleLine struct {
	ItemID   string `json:"item_id" db:"item_id"`
	Quantity int    `json:"quantity" db:"quantity"`
}

// SaleEvent is an immutable sale record. OrderedAt is zero when the source
// timestamp could not be parsed at ingest; RawOrderedAt keeps the original text.
type SaleEvent struct {
	ID           string     `json:"id" db:"id"`
	OrderedAt    time.Time  `json:"ordered_at" db:"ordered_at"`
	RawOrderedAt string     `json:"raw_ordered_at,omitempty" db:"raw_ordered_at"`
	RecordedAt   time.Time  `json:"recorded_at" db:"recorded_at"`
	Lines        []SaleLine `json:"lines" db:"-"`
}

// DepletionStatus distinguishes a concrete date from the two sentinels.
type DepletionStatus string

const (
	DepletionDate          DepletionStatus = "date"
	DepletionSufficient    DepletionStatus = "sufficient"
	DepletionNotComputable DepletionStatus = "not_computable"
)

// Depletion is the predicted stock-out. Date is set only for DepletionDate.
type Depletion struct {
	Status DepletionStatus `json:"status"`
	Date   *time.Time      `json:"date,omitempty"`
}

// Policy records which decision path produced a recommendation.
type Policy string

const (
	PolicyForecast     Policy = "forecast"
	PolicyThreshold    Policy = "threshold"
	PolicyMinimumStock Policy = "minimum_stock"
)

// Recommendation is one restock decision for one item within a run.
type Recommendation struct {
	ID                 int64           `json:"-" db:"id"`
	RunID              string          `json:"run_id" db:"run_id"`
	ItemID             string          `json:"item_id" db:"item_id"`
	CurrentStock       int             `json:"current_stock" db:"current_stock"`
	DailyAverage       float64         `json:"daily_average" db:"daily_average"`
	DaysUntilDepletion *int            `json:"days_until_depletion" db:"days_until_depletion"`
	DepletionStatus    DepletionStatus `json:"depletion_status" db:"depletion_status"`
	DepletionDate      *time.Time      `json:"depletion_date" db:"depletion_date"`
	MonthlyDemand      float64         `json:"monthly_demand" db:"monthly_demand"`
	OrderQuantity      int             `json:"order_quantity" db:"order_quantity"`
	Confidence         float64         `json:"confidence" db:"confidence"`
	PeakAdjusted       bool            `json:"peak_adjusted" db:"peak_adjusted"`
	SafetyStockApplied bool            `json:"safety_stock_applied" db:"safety_stock_applied"`
	Policy             Policy          `json:"policy" db:"policy"`
	LastRestockedAt    *time.Time      `json:"last_restocked_at,omitempty" db:"last_restocked_at"`
	ComputedAt         time.Time       `json:"computed_at" db:"computed_at"`
}

// Depletion reassembles the flattened depletion columns.
func (r Recommendation) Depletion() Depletion {
	return Depletion{Status: r.DepletionStatus, Date: r.DepletionDate}
}

// SetDepletion flattens d into the record.
func (r *Recommendation) SetDepletion(d Depletion) {
	r.DepletionStatus = d.Status
	r.DepletionDate = d.Date
}

// SourceTimestamps are the newest timestamps the change gate compares.
type SourceTimestamps struct {
	LatestRecommendationAt *time.Time
	LatestItemUpdateAt     *time.Time
	LatestSaleAt           *time.Time
}
