package ingest

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/repository/memory"
)

const salesCSV = `invoice_id,ordered_at,item_id,qty_sold
INV-1,2024-04-01 09:30:00,A,2
INV-1,2024-04-01 09:30:00,B,1
INV-2,2024-04-02,A,3.0
INV-3,yesterday,A,1
INV-4,2024-04-03,,1
INV-5,2024-04-03,A,1.5

`

func TestParseSalesGroupsLinesByInvoice(t *testing.T) {
	rows, err := ReadTable("sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)

	events, skipped, err := ParseSales(rows, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, events, 3)

	inv1 := events[0]
	assert.Equal(t, "INV-1", inv1.ID)
	assert.Equal(t, time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC), inv1.OrderedAt)
	assert.Equal(t, []domain.SaleLine{{ItemID: "A", Quantity: 2}, {ItemID: "B", Quantity: 1}}, inv1.Lines)

	assert.Equal(t, 3, events[1].Lines[0].Quantity)

	// Unparsable timestamps survive with the raw text only.
	assert.True(t, events[2].OrderedAt.IsZero())
	assert.Equal(t, "yesterday", events[2].RawOrderedAt)
}

func TestParseSalesSkipsNegativeAndOversizedQuantities(t *testing.T) {
	rows := [][]string{
		{"invoice_id", "ordered_at", "item_id", "qty_sold"},
		{"INV-1", "2024-04-01", "A", "2"},
		{"INV-1", "2024-04-01", "B", "-1"},
		{"INV-2", "2024-04-01", "A", "1e30"},
	}

	events, skipped, err := ParseSales(rows, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, events, 1)
	assert.Equal(t, []domain.SaleLine{{ItemID: "A", Quantity: 2}}, events[0].Lines)
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{raw: "3", want: 3, ok: true},
		{raw: "3.0", want: 3, ok: true},
		{raw: "-4", want: -4, ok: true},
		{raw: "2147483647", want: 2147483647, ok: true},
		{raw: "2147483648"},
		{raw: "1e30"},
		{raw: "-1e30"},
		{raw: "Inf"},
		{raw: "NaN"},
		{raw: "1.5"},
		{raw: "abc"},
		{raw: ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseQuantity(tt.raw)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSalesRequiresColumns(t *testing.T) {
	_, _, err := ParseSales([][]string{{"invoice_id", "item_id"}}, time.UTC)
	assert.ErrorContains(t, err, "missing required column: ordered_at")

	_, _, err = ParseSales(nil, time.UTC)
	assert.Error(t, err)
}

func TestHeadersAreNormalised(t *testing.T) {
	rows := [][]string{
		{"\ufeffInvoice ID", " Ordered At ", "Item_ID", "QTY SOLD"},
		{"1", "2024-04-01", "A", "4"},
	}
	events, _, err := ParseSales(rows, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 4, events[0].Lines[0].Quantity)
}

func TestParseItems(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	rows := [][]string{
		{"item_id", "name", "quantity", "last_restocked_at"},
		{"A", "Paracetamol", "45", "2024-03-20"},
		{"B", "", "60", ""},
		{"C", "", "many", ""},
	}

	items, skipped, err := ParseItems(rows, loc)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, items, 2)
	assert.Equal(t, "Paracetamol", items[0].Name)
	require.NotNil(t, items[0].LastRestockedAt)
	assert.Equal(t, time.Date(2024, 3, 20, 0, 0, 0, 0, loc), *items[0].LastRestockedAt)
	assert.Nil(t, items[1].LastRestockedAt)
}

func TestReadTableXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"invoice_id", "ordered_at", "item_id", "qty_sold"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"INV-9", "2024-04-05", "C", "10"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	rows, err := ReadTable("export.xlsx", &buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"INV-9", "2024-04-05", "C", "10"}, rows[1])
}

func TestReadTableRejectsUnknownExtension(t *testing.T) {
	_, err := ReadTable("sales.json", strings.NewReader("{}"))
	assert.Error(t, err)
}

func TestImporterIsIdempotentForSales(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	imp := NewImporter(store, time.UTC)

	first, err := imp.Import(ctx, KindSales, "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, first.Records)
	assert.Equal(t, 3, first.Inserted)
	assert.Equal(t, 2, first.Skipped)

	second, err := imp.Import(ctx, KindSales, "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)

	events, err := store.ListSaleEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestImporterItems(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	imp := NewImporter(store, nil)

	summary, err := imp.Import(ctx, KindItems, "items.csv", strings.NewReader("item_id,quantity\nA,45\nB,60\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)

	items, err := store.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 45, items[0].Quantity)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("sales")
	require.NoError(t, err)
	assert.Equal(t, KindSales, k)

	_, err = ParseKind("orders")
	assert.Error(t, err)
}
