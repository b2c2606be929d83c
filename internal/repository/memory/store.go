// Package memory is an in-process Store used by tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/repository"
)

type Store struct {
	mu     sync.RWMutex
	items  map[string]domain.Item
	sales  []domain.SaleEvent
	recs   []domain.Recommendation
	runs   map[string]domain.Run
	order  []string
	nextID int64
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{
		items: make(map[string]domain.Item),
		runs:  make(map[string]domain.Run),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock that stamps updated_at, recorded_at and Now.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Now(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now(), nil
}

func (s *Store) ListItems(ctx context.Context) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpsertItems(ctx context.Context, items []domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if item.UpdatedAt == nil {
			now := s.now()
			item.UpdatedAt = &now
		}
		s.items[item.ID] = item
	}
	return nil
}

func (s *Store) LatestItemUpdate(ctx context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	for _, item := range s.items {
		latest = later(latest, item.UpdatedAt)
	}
	return latest, nil
}

func (s *Store) ListSaleEvents(ctx context.Context) ([]domain.SaleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SaleEvent, len(s.sales))
	copy(out, s.sales)
	return out, nil
}

func (s *Store) InsertSaleEvents(ctx context.Context, events []domain.SaleEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.sales))
	for _, e := range s.sales {
		seen[e.ID] = true
	}

	inserted := 0
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if seen[e.ID] {
			continue
		}
		if e.RecordedAt.IsZero() {
			e.RecordedAt = s.now()
		}
		seen[e.ID] = true
		s.sales = append(s.sales, e)
		inserted++
	}
	return inserted, nil
}

func (s *Store) LatestSale(ctx context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	for i := range s.sales {
		e := s.sales[i]
		if !e.OrderedAt.IsZero() {
			latest = later(latest, &e.OrderedAt)
		}
		if !e.RecordedAt.IsZero() {
			latest = later(latest, &e.RecordedAt)
		}
	}
	return latest, nil
}

func (s *Store) ReplaceRecommendations(ctx context.Context, runID string, recs []domain.Recommendation) error {
	next := make([]domain.Recommendation, len(recs))
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range recs {
		s.nextID++
		rec.ID = s.nextID
		rec.RunID = runID
		next[i] = rec
	}
	s.recs = next
	return nil
}

func (s *Store) ListRecommendations(ctx context.Context) ([]domain.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Recommendation, len(s.recs))
	copy(out, s.recs)
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func (s *Store) GetRecommendation(ctx context.Context, itemID string) (*domain.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.recs {
		if rec.ItemID == itemID {
			rec := rec
			return &rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) LatestRecommendationAt(ctx context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	for i := range s.recs {
		latest = later(latest, &s.recs[i].ComputedAt)
	}
	return latest, nil
}

func (s *Store) CreateRun(ctx context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	s.runs[run.ID] = *run
	s.order = append(s.order, run.ID)
	return nil
}

func (s *Store) UpdateRun(ctx context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return repository.ErrNotFound
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &run, nil
}

func (s *Store) LatestRun(ctx context.Context) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return nil, repository.ErrNotFound
	}
	run := s.runs[s.order[len(s.order)-1]]
	return &run, nil
}

func later(a, b *time.Time) *time.Time {
	if b == nil {
		return a
	}
	if a == nil || b.After(*a) {
		t := *b
		return &t
	}
	return a
}

var (
	_ repository.Store         = (*Store)(nil)
	_ repository.RunRepository = (*Store)(nil)
)
