package store

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"
)

func testConfig(now time.Time) Config {
	return Config{
		Clock:  func() time.Time { return now },
		Logger: log.New(io.Discard, "", 0),
	}
}

// backends returns a fresh memory store and a fresh SQLite store.
func backends(t *testing.T, now time.Time) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "agrichain.db"), testConfig(now))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(testConfig(now)),
		"sqlite": sqlite,
	}
}

func TestRecommendationHistoryNewestFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, s := range backends(t, now) {
		ctx := context.Background()
		for i, id := range []string{"r1", "r2", "r3"} {
			rec := Record{ID: id, CropName: "tomato", Region: "Nagpur", Quantity: 50, PredictedPrice: 1725,
				SpoilageRisk: 0.25, ModelUsed: "fallback, fallback", CreatedAt: now.Add(time.Duration(i) * time.Minute)}
			if err := s.SaveRecommendation(ctx, rec); err != nil {
				t.Fatalf("%s: save: %v", name, err)
			}
		}
		got, err := s.ListRecommendations(ctx, 2)
		if err != nil {
			t.Fatalf("%s: list: %v", name, err)
		}
		if len(got) != 2 || got[0].ID != "r3" || got[1].ID != "r2" {
			t.Fatalf("%s: unexpected history %+v", name, got)
		}
		if !got[0].CreatedAt.Equal(now.Add(2*time.Minute)) || got[0].PredictedPrice != 1725 {
			t.Fatalf("%s: unexpected record %+v", name, got[0])
		}
		if err := s.SaveRecommendation(ctx, Record{}); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid for missing id, got %v", name, err)
		}
	}
}

func TestMarketPriceUpsert(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, s := range backends(t, now) {
		ctx := context.Background()
		for _, p := range []MarketPrice{
			{MandiName: "Vashi", CropName: "Tomato", Price: 2500},
			{MandiName: "Kalamna", CropName: "tomato", Price: 2100},
			{MandiName: "Vashi", CropName: "Wheat", Price: 2150},
			{MandiName: "Vashi", CropName: " TOMATO ", Price: 2600, State: "Maharashtra"},
		} {
			if _, err := s.UpsertMarketPrice(ctx, p); err != nil {
				t.Fatalf("%s: upsert: %v", name, err)
			}
		}
		got, err := s.ListMarketPrices(ctx, "Tomato")
		if err != nil {
			t.Fatalf("%s: list: %v", name, err)
		}
		if len(got) != 2 {
			t.Fatalf("%s: expected 2 tomato quotes, got %+v", name, got)
		}
		if got[0].MandiName != "Vashi" || got[0].Price != 2600 || got[0].State != "Maharashtra" {
			t.Fatalf("%s: expected updated Vashi quote first, got %+v", name, got[0])
		}
		if !got[0].UpdatedAt.Equal(now) {
			t.Fatalf("%s: expected clock timestamp, got %v", name, got[0].UpdatedAt)
		}
		all, err := s.ListMarketPrices(ctx, "")
		if err != nil || len(all) != 3 {
			t.Fatalf("%s: expected 3 quotes overall, got %d %v", name, len(all), err)
		}
	}
}

func TestMarketPriceValidation(t *testing.T) {
	for name, s := range backends(t, time.Now()) {
		for _, p := range []MarketPrice{
			{CropName: "tomato", Price: 10},
			{MandiName: "Vashi", Price: 10},
			{MandiName: "Vashi", CropName: "tomato", Price: 0},
			{MandiName: "Vashi", CropName: "tomato", Price: 10, ArrivalVolume: -1},
		} {
			if _, err := s.UpsertMarketPrice(context.Background(), p); !errors.Is(err, ErrInvalid) {
				t.Fatalf("%s: expected ErrInvalid for %+v, got %v", name, p, err)
			}
		}
	}
}

func TestRankedPreservationActions(t *testing.T) {
	for name, s := range backends(t, time.Now()) {
		got, err := s.RankedPreservationActions(context.Background())
		if err != nil {
			t.Fatalf("%s: rank: %v", name, err)
		}
		if len(got) != len(DefaultActions) {
			t.Fatalf("%s: expected %d seeded actions, got %d", name, len(DefaultActions), len(got))
		}
		want := []string{"Humidity Management", "Ventilation", "Temperature Control", "Organic Coatings",
			"Ethylene Absorbers", "Modified Atmosphere Packaging", "Pre-cooling", "UV Treatment"}
		for i, n := range want {
			if got[i].Name != n {
				t.Fatalf("%s: position %d: expected %q, got %q", name, i, n, got[i].Name)
			}
		}
		if got[0].ValueScore != 2 {
			t.Fatalf("%s: expected value score 2, got %v", name, got[0].ValueScore)
		}
	}
}

func TestCreatePreservationAction(t *testing.T) {
	for name, s := range backends(t, time.Now()) {
		ctx := context.Background()
		a, err := s.CreatePreservationAction(ctx, PreservationAction{Name: "Shade Netting", Description: "Cover produce awaiting pickup", Cost: 1, Effectiveness: 3})
		if err != nil {
			t.Fatalf("%s: create: %v", name, err)
		}
		if a.ValueScore != 3 {
			t.Fatalf("%s: expected value score 3, got %v", name, a.ValueScore)
		}
		ranked, _ := s.RankedPreservationActions(ctx)
		if ranked[0].Name != "Shade Netting" {
			t.Fatalf("%s: expected new action ranked first, got %q", name, ranked[0].Name)
		}
		if _, err := s.CreatePreservationAction(ctx, a); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected duplicate to be rejected, got %v", name, err)
		}
		if _, err := s.CreatePreservationAction(ctx, PreservationAction{Name: "x"}); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected missing description to be rejected, got %v", name, err)
		}
	}
}

func TestRankActionsZeroCostFirst(t *testing.T) {
	got := RankActions([]PreservationAction{
		{Name: "cheap", Cost: 1, Effectiveness: 9},
		{Name: "free", Cost: 0, Effectiveness: 1},
	})
	if got[0].Name != "free" {
		t.Fatalf("expected zero-cost action first, got %q", got[0].Name)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agrichain.db")
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s, err := NewSQLiteStore(context.Background(), path, testConfig(now))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRecommendation(context.Background(), Record{ID: "keep", CreatedAt: now}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteStore(context.Background(), path, testConfig(now))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.ListRecommendations(context.Background(), 0)
	if err != nil || len(got) != 1 || got[0].ID != "keep" {
		t.Fatalf("expected persisted record, got %+v %v", got, err)
	}
	actions, _ := s.RankedPreservationActions(context.Background())
	if len(actions) != len(DefaultActions) {
		t.Fatalf("reseeding must not duplicate actions, got %d", len(actions))
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open(context.Background(), "", "", Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
	if _, err := Open(context.Background(), "mysql", "", Config{}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}
