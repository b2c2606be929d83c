package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/repository"
)

// Kind selects which parser a file goes through.
type Kind string

const (
	KindSales Kind = "sales"
	KindItems Kind = "items"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSales, KindItems:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown import kind %q (want sales or items)", s)
	}
}

// Summary reports the outcome of one imported file.
type Summary struct {
	File     string `json:"file"`
	Kind     Kind   `json:"kind"`
	Records  int    `json:"records"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
}

type Store interface {
	repository.InventoryRepository
	repository.SalesRepository
}

type Importer struct {
	store Store
	loc   *time.Location
}

func NewImporter(store Store, loc *time.Location) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{store: store, loc: loc}
}

// ImportFile opens path and imports it as kind.
func (i *Importer) ImportFile(ctx context.Context, kind Kind, path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return i.Import(ctx, kind, filepath.Base(path), f)
}

// Import parses r as a CSV or XLSX export named name and stores its records.
// Sale events already present are left untouched.
func (i *Importer) Import(ctx context.Context, kind Kind, name string, r io.Reader) (*Summary, error) {
	rows, err := ReadTable(name, r)
	if err != nil {
		return nil, err
	}

	summary := &Summary{File: name, Kind: kind}
	switch kind {
	case KindSales:
		events, skipped, err := ParseSales(rows, i.loc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		inserted, err := i.store.InsertSaleEvents(ctx, events)
		if err != nil {
			return nil, fmt.Errorf("failed to store sale events from %s: %w", name, err)
		}
		summary.Records, summary.Inserted, summary.Skipped = len(events), inserted, skipped
	case KindItems:
		items, skipped, err := ParseItems(rows, i.loc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		if err := i.store.UpsertItems(ctx, items); err != nil {
			return nil, fmt.Errorf("failed to store items from %s: %w", name, err)
		}
		summary.Records, summary.Inserted, summary.Skipped = len(items), len(items), skipped
	default:
		return nil, fmt.Errorf("unknown import kind %q", kind)
	}

	log.Info().
		Str("file", name).
		Str("kind", string(kind)).
		Int("records", summary.Records).
		Int("inserted", summary.Inserted).
		Int("skipped", summary.Skipped).
		Msg("import completed")
	return summary, nil
}
