package ingest

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/domain"
)

var saleColumns = []string{"invoice_id", "ordered_at", "item_id", "qty_sold"}

// ParseSales groups sale export rows into one event per invoice. Rows without
// an invoice id or item id, or with a quantity that is not a non-negative whole
// number, are skipped and counted. An unparsable ordered_at is kept raw on the event so
// the aggregator applies its own malformed-record policy.
func ParseSales(rows [][]string, loc *time.Location) ([]domain.SaleEvent, int, error) {
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("sales file is empty")
	}
	cols, err := headerColumns(rows[0], saleColumns...)
	if err != nil {
		return nil, 0, err
	}

	var (
		events  []domain.SaleEvent
		index   = make(map[string]int)
		skipped int
	)
	for i, record := range rows[1:] {
		if blank(record) {
			continue
		}
		line := i + 2

		invoice := cols.value(record, "invoice_id")
		itemID := cols.value(record, "item_id")
		if invoice == "" || itemID == "" {
			log.Warn().Int("line", line).Msg("sale row without invoice_id or item_id, skipping")
			skipped++
			continue
		}

		qty, err := parseQuantity(cols.value(record, "qty_sold"))
		if err == nil && qty < 0 {
			err = fmt.Errorf("quantity %d is negative", qty)
		}
		if err != nil {
			log.Warn().Err(err).Int("line", line).Str("invoice_id", invoice).Msg("invalid qty_sold, skipping")
			skipped++
			continue
		}

		pos, ok := index[invoice]
		if !ok {
			raw := cols.value(record, "ordered_at")
			event := domain.SaleEvent{ID: invoice, RawOrderedAt: raw}
			if t, err := domain.ParseTimestamp(raw, loc); err == nil {
				event.OrderedAt = t
			} else {
				log.Warn().Int("line", line).Str("invoice_id", invoice).Str("ordered_at", raw).Msg("unparsable ordered_at, keeping raw value")
			}
			pos = len(events)
			index[invoice] = pos
			events = append(events, event)
		}
		events[pos].Lines = append(events[pos].Lines, domain.SaleLine{ItemID: itemID, Quantity: qty})
	}

	return events, skipped, nil
}

// parseQuantity accepts integers and integral floats such as "3.0" that fit the
// int column they are stored in.
func parseQuantity(raw string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a number", raw)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("quantity %q is not a whole number", raw)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("quantity %q is out of range", raw)
	}
	return int(f), nil
}
