// Package store persists recommendation history, quoted mandi prices and the
// preservation action catalogue. Memory, SQLite and Postgres backends share
// one interface.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid record")

type Record struct {
	ID              string    `json:"id"`
	CropName        string    `json:"crop_name"`
	Region          string    `json:"region"`
	Quantity        float64   `json:"quantity"`
	SuggestedMandi  string    `json:"suggested_mandi"`
	PredictedPrice  float64   `json:"predicted_price"`
	PredictedProfit float64   `json:"predicted_profit"`
	SpoilageRisk    float64   `json:"spoilage_risk"`
	HarvestWindow   string    `json:"harvest_window"`
	ModelUsed       string    `json:"model_used"`
	CreatedAt       time.Time `json:"created_at"`
}

type MarketPrice struct {
	MandiName     string    `json:"mandi_name"`
	CropName      string    `json:"crop_name"`
	Price         float64   `json:"price"`
	ArrivalVolume float64   `json:"arrival_volume,omitempty"`
	State         string    `json:"state,omitempty"`
	PriceDate     string    `json:"price_date,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type PreservationAction struct {
	Name          string  `json:"action_name"`
	Description   string  `json:"description"`
	Cost          int     `json:"cost_score"`
	Effectiveness int     `json:"effectiveness_score"`
	ValueScore    float64 `json:"value_score"`
}

type Store interface {
	SaveRecommendation(ctx context.Context, rec Record) error
	ListRecommendations(ctx context.Context, limit int) ([]Record, error)
	UpsertMarketPrice(ctx context.Context, p MarketPrice) (MarketPrice, error)
	ListMarketPrices(ctx context.Context, crop string) ([]MarketPrice, error)
	CreatePreservationAction(ctx context.Context, a PreservationAction) (PreservationAction, error)
	RankedPreservationActions(ctx context.Context) ([]PreservationAction, error)
	Close() error
}

type Config struct {
	Clock  func() time.Time
	Logger *log.Logger
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// DefaultActions are seeded into every fresh store.
var DefaultActions = []PreservationAction{
	{Name: "Temperature Control", Description: "Maintain storage temperature between 4-10°C to slow bacterial growth", Cost: 3, Effectiveness: 5},
	{Name: "Humidity Management", Description: "Keep humidity at 40-60% to prevent mold and fungal growth", Cost: 2, Effectiveness: 4},
	{Name: "Ventilation", Description: "Ensure proper air circulation to reduce moisture buildup", Cost: 2, Effectiveness: 4},
	{Name: "Modified Atmosphere Packaging", Description: "Use sealed bags with controlled O2/CO2 levels", Cost: 4, Effectiveness: 5},
	{Name: "Pre-cooling", Description: "Rapidly cool produce after harvest to remove field heat", Cost: 4, Effectiveness: 5},
	{Name: "Ethylene Absorbers", Description: "Use potassium permanganate sachets to absorb ethylene gas", Cost: 3, Effectiveness: 4},
	{Name: "UV Treatment", Description: "Brief UV exposure to kill surface pathogens", Cost: 3, Effectiveness: 3},
	{Name: "Organic Coatings", Description: "Apply edible wax coatings to reduce water loss", Cost: 2, Effectiveness: 3},
}

// Open returns the backend for driver: "" or "memory", "sqlite", "postgres".
func Open(ctx context.Context, driver, dsn string, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return NewMemoryStore(cfg), nil
	case "sqlite":
		return NewSQLiteStore(ctx, dsn, cfg)
	case "postgres":
		return NewPostgresStore(ctx, dsn, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func normalizeCrop(crop string) string {
	return strings.ToLower(strings.TrimSpace(crop))
}

func validateMarketPrice(p MarketPrice) (MarketPrice, error) {
	p.MandiName = strings.TrimSpace(p.MandiName)
	p.CropName = normalizeCrop(p.CropName)
	switch {
	case p.MandiName == "":
		return p, fmt.Errorf("%w: mandi_name is required", ErrInvalid)
	case p.CropName == "":
		return p, fmt.Errorf("%w: crop_name is required", ErrInvalid)
	case !(p.Price > 0) || math.IsInf(p.Price, 0):
		return p, fmt.Errorf("%w: price must be greater than 0", ErrInvalid)
	case p.ArrivalVolume < 0:
		return p, fmt.Errorf("%w: arrival_volume must be >= 0", ErrInvalid)
	}
	return p, nil
}

func validateAction(a PreservationAction) (PreservationAction, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Description = strings.TrimSpace(a.Description)
	switch {
	case a.Name == "":
		return a, fmt.Errorf("%w: action_name is required", ErrInvalid)
	case a.Description == "":
		return a, fmt.Errorf("%w: description is required", ErrInvalid)
	case a.Cost < 0 || a.Cost > 10:
		return a, fmt.Errorf("%w: cost_score must be between 0 and 10", ErrInvalid)
	case a.Effectiveness < 0 || a.Effectiveness > 10:
		return a, fmt.Errorf("%w: effectiveness_score must be between 0 and 10", ErrInvalid)
	}
	return a, nil
}

// RankActions orders by effectiveness per unit cost, then effectiveness, then
// name. A zero cost ranks ahead of everything.
func RankActions(actions []PreservationAction) []PreservationAction {
	out := make([]PreservationAction, len(actions))
	for i, a := range actions {
		a.ValueScore = valueScore(a)
		out[i] = a
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ai, bi := a.Cost == 0, b.Cost == 0; ai != bi {
			return ai
		}
		if a.ValueScore != b.ValueScore {
			return a.ValueScore > b.ValueScore
		}
		if a.Effectiveness != b.Effectiveness {
			return a.Effectiveness > b.Effectiveness
		}
		return a.Name < b.Name
	})
	return out
}

func valueScore(a PreservationAction) float64 {
	if a.Cost == 0 {
		return 0
	}
	return float64(a.Effectiveness) / float64(a.Cost)
}
