package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-04-01T10:00:00Z", time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-04-01 10:00:00", time.Date(2024, 4, 1, 10, 0, 0, 0, loc)},
		{"2024-04-01", time.Date(2024, 4, 1, 0, 0, 0, 0, loc)},
		{"01/04/2024 08:15", time.Date(2024, 4, 1, 8, 15, 0, 0, loc)},
		{"  2024-04-01T10:00:00  ", time.Date(2024, 4, 1, 10, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw, loc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}

	for _, raw := range []string{"", "yesterday", "2024-13-45"} {
		_, err := ParseTimestamp(raw, loc)
		assert.Error(t, err, raw)
	}
}

func TestSkippedItemsColumn(t *testing.T) {
	v, err := SkippedItems(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	items := SkippedItems{{ItemID: "B", Reason: "no_sales"}}
	v, err = items.Value()
	require.NoError(t, err)

	var scanned SkippedItems
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, items, scanned)

	require.NoError(t, scanned.Scan(`[{"item_id":"C","reason":"fit_failed"}]`))
	assert.Equal(t, "C", scanned[0].ItemID)

	assert.Error(t, scanned.Scan(42))
}

func TestRecommendationDepletionFlattening(t *testing.T) {
	date := time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)
	var r Recommendation
	r.SetDepletion(Depletion{Status: DepletionDate, Date: &date})

	assert.Equal(t, DepletionDate, r.DepletionStatus)
	assert.Equal(t, Depletion{Status: DepletionDate, Date: &date}, r.Depletion())
}
