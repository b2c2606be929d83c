package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/andresuchdata/restock-forecast/internal/storage"
)

// AggregateKey labels the portfolio-wide series in logs and skip reports.
const AggregateKey = "_aggregate"

const (
	itemModelsPrefix = "models/items/"
	aggregateModel   = "models/aggregate/portfolio.json"
)

// ModelKey identifies a stored model. The portfolio model never shares a key
// with an item, whatever the item is called.
type ModelKey struct {
	ItemID    string
	Aggregate bool
}

func (k ModelKey) String() string {
	if k.Aggregate {
		return AggregateKey
	}
	return k.ItemID
}

// ModelStore persists fitted models as JSON artifacts.
type ModelStore struct {
	objects storage.ObjectStorage
}

func NewModelStore(objects storage.ObjectStorage) *ModelStore {
	return &ModelStore{objects: objects}
}

// objectKey escapes the item id so it always names a single file under the item prefix.
func objectKey(k ModelKey) string {
	if k.Aggregate {
		return aggregateModel
	}
	return itemModelsPrefix + url.PathEscape(k.ItemID) + ".json"
}

// Load returns ErrModelNotFound when nothing is stored for k.
func (s *ModelStore) Load(ctx context.Context, k ModelKey) (*Model, error) {
	data, err := s.objects.GetObject(ctx, objectKey(k))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, err
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", k, err)
	}
	if m.Version != modelVersion {
		return nil, ErrModelNotFound
	}
	return &m, nil
}

func (s *ModelStore) Save(ctx context.Context, m *Model) error {
	k := m.Key()
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode model %s: %w", k, err)
	}
	return s.objects.UploadObject(ctx, objectKey(k), data)
}

// Prune deletes item models whose item is not in keep and returns how many went.
// The portfolio model is never pruned.
func (s *ModelStore) Prune(ctx context.Context, keep map[string]bool) (int, error) {
	objects, err := s.objects.ListObjects(ctx, itemModelsPrefix)
	if err != nil {
		return 0, fmt.Errorf("list stored models: %w", err)
	}

	removed := 0
	for _, o := range objects {
		name, ok := strings.CutPrefix(o.Key, itemModelsPrefix)
		if !ok || !strings.HasSuffix(name, ".json") {
			continue
		}
		itemID, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil || keep[itemID] {
			continue
		}
		if err := s.objects.DeleteObject(ctx, o.Key); err != nil {
			return removed, fmt.Errorf("delete stored model %s: %w", itemID, err)
		}
		removed++
	}
	return removed, nil
}
