package indicator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/willf/bloom"

	"threatwatch/internal/metrics"
)

const (
	bloomCapacity  = 1 << 20
	bloomHashFuncs = 5
)

// MemoryStore is the in-memory Store implementation. A bloom filter fronts the
// map so lookups for indicators that were never stored skip the read lock.
// Indicators are never deleted, so the filter never needs rebuilding.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]*Indicator
	filter *bloom.BloomFilter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[string]*Indicator),
		filter: bloom.New(bloomCapacity, bloomHashFuncs),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, ind Indicator) (Outcome, error) {
	key := ind.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[key]
	if !ok {
		if ind.ID == "" {
			ind.ID = uuid.NewString()
		}
		if ind.LastSeen.Before(ind.FirstSeen) {
			ind.LastSeen = ind.FirstSeen
		}
		s.items[key] = &ind
		s.filter.AddString(key)
		metrics.IndicatorsStored.Set(float64(len(s.items)))
		return OutcomeInserted, nil
	}

	if merge(existing, ind) {
		slog.Debug("indicator updated", "key", key, "source", ind.Source)
		return OutcomeUpdated, nil
	}
	return OutcomeUnchanged, nil
}

func (s *MemoryStore) Get(ctx context.Context, t Type, value string) (*Indicator, error) {
	key := Key(t, value)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.filter.TestString(key) {
		return nil, nil
	}
	ind, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	cp := *ind
	cp.Tags = append([]string(nil), ind.Tags...)
	return &cp, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

func (s *MemoryStore) All(ctx context.Context) ([]Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Indicator, 0, len(s.items))
	for _, ind := range s.items {
		out = append(out, *ind)
	}
	return out, nil
}
