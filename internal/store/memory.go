package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps everything in process; contents are lost on restart.
type MemoryStore struct {
	cfg Config

	mu      sync.RWMutex
	history []Record
	prices  map[string]MarketPrice
	actions map[string]PreservationAction
}

func NewMemoryStore(cfg Config) *MemoryStore {
	s := &MemoryStore{
		cfg:     cfg.withDefaults(),
		prices:  map[string]MarketPrice{},
		actions: map[string]PreservationAction{},
	}
	for _, a := range DefaultActions {
		s.actions[a.Name] = a
	}
	return s
}

func priceKey(mandi, crop string) string {
	return strings.ToLower(mandi) + "\x00" + crop
}

func (s *MemoryStore) SaveRecommendation(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec)
	return nil
}

func (s *MemoryStore) ListRecommendations(_ context.Context, limit int) ([]Record, error) {
	limit = normalizeLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.history[i])
	}
	return out, nil
}

func (s *MemoryStore) UpsertMarketPrice(_ context.Context, p MarketPrice) (MarketPrice, error) {
	p, err := validateMarketPrice(p)
	if err != nil {
		return MarketPrice{}, err
	}
	p.UpdatedAt = s.cfg.Clock().UTC()
	s.mu.Lock()
	s.prices[priceKey(p.MandiName, p.CropName)] = p
	s.mu.Unlock()
	return p, nil
}

func (s *MemoryStore) ListMarketPrices(_ context.Context, crop string) ([]MarketPrice, error) {
	crop = normalizeCrop(crop)
	s.mu.RLock()
	out := make([]MarketPrice, 0, len(s.prices))
	for _, p := range s.prices {
		if crop == "" || p.CropName == crop {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()
	sortPrices(out)
	return out, nil
}

func sortPrices(out []MarketPrice) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price > out[j].Price
		}
		if out[i].MandiName != out[j].MandiName {
			return out[i].MandiName < out[j].MandiName
		}
		return out[i].CropName < out[j].CropName
	})
}

func (s *MemoryStore) CreatePreservationAction(_ context.Context, a PreservationAction) (PreservationAction, error) {
	a, err := validateAction(a)
	if err != nil {
		return PreservationAction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.actions[a.Name]; exists {
		return PreservationAction{}, fmt.Errorf("%w: action %q already exists", ErrInvalid, a.Name)
	}
	s.actions[a.Name] = a
	a.ValueScore = valueScore(a)
	return a, nil
}

func (s *MemoryStore) RankedPreservationActions(_ context.Context) ([]PreservationAction, error) {
	s.mu.RLock()
	all := make([]PreservationAction, 0, len(s.actions))
	for _, a := range s.actions {
		all = append(all, a)
	}
	s.mu.RUnlock()
	return RankActions(all), nil
}

func (s *MemoryStore) Close() error { return nil }
