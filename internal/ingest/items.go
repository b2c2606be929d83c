package ingest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/domain"
)

// ParseItems reads an inventory snapshot with columns item_id, quantity and
// the optional name and last_restocked_at.
func ParseItems(rows [][]string, loc *time.Location) ([]domain.Item, int, error) {
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("items file is empty")
	}
	cols, err := headerColumns(rows[0], "item_id", "quantity")
	if err != nil {
		return nil, 0, err
	}

	var (
		items   []domain.Item
		skipped int
	)
	for i, record := range rows[1:] {
		if blank(record) {
			continue
		}
		line := i + 2

		id := cols.value(record, "item_id")
		if id == "" {
			log.Warn().Int("line", line).Msg("item row without item_id, skipping")
			skipped++
			continue
		}
		qty, err := parseQuantity(cols.value(record, "quantity"))
		if err != nil {
			log.Warn().Err(err).Int("line", line).Str("item_id", id).Msg("invalid quantity, skipping")
			skipped++
			continue
		}

		item := domain.Item{ID: id, Name: cols.value(record, "name"), Quantity: qty}
		if raw := cols.value(record, "last_restocked_at"); raw != "" {
			if t, err := domain.ParseTimestamp(raw, loc); err == nil {
				item.LastRestockedAt = &t
			} else {
				log.Warn().Int("line", line).Str("item_id", id).Str("last_restocked_at", raw).Msg("unparsable last_restocked_at, ignoring")
			}
		}
		items = append(items, item)
	}

	return items, skipped, nil
}
