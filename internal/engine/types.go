package engine

import (
	"time"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
)

const (
	SourcePriceModel    = "price_model"
	SourceSpoilageModel = "spoilage_model"

	DefaultQuantity  = 100.0
	PlaceholderMandi = "Nearest Mandi"
	UnknownMandi     = "Unknown"
)

// CropSnapshot is one recommendation request. Optional readings fall back to
// documented defaults; a missing quantity means DefaultQuantity.
type CropSnapshot struct {
	CropID      any                    `json:"crop_id,omitempty"`
	CropName    string                 `json:"crop_name"`
	Region      string                 `json:"region"`
	Quantity    *float64               `json:"quantity,omitempty"`
	Soil        agri.SoilSample        `json:"soil"`
	Storage     agri.StorageConditions `json:"storage"`
	Weather     []agri.WeatherDay      `json:"weather"`
	MandiPrices []agri.MarketQuote     `json:"mandi_prices"`
}

type Recommendation struct {
	SuggestedMandi        string    `json:"suggested_mandi"`
	PredictedPrice        float64   `json:"predicted_price"`
	PredictedProfit       float64   `json:"predicted_profit"`
	SpoilageRisk          float64   `json:"spoilage_risk"`
	HarvestWindow         string    `json:"harvest_window"`
	ExplanationText       string    `json:"explanation_text"`
	TransportCostEstimate float64   `json:"transport_cost_estimate"`
	ModelUsed             string    `json:"model_used"`
	Timestamp             time.Time `json:"timestamp"`

	// Provenance of the price and risk figures: a model source or "fallback".
	PriceSource    string  `json:"-"`
	SpoilageSource string  `json:"-"`
	Quantity       float64 `json:"-"`
}

// Resolution is a single resolved figure and where it came from.
type Resolution struct {
	Value  float64
	Source string
}

// PriceQuery carries what price resolution needs: model features plus the
// crop/region/quantity the heuristic falls back on.
type PriceQuery struct {
	CropName string
	Region   string
	Quantity float64
	Soil     agri.SoilSample
	Today    agri.WeatherDay
}

// Features is the price model input vector in training order.
func (q PriceQuery) Features() []float64 {
	return []float64{
		q.Quantity,
		agri.Or(q.Soil.PH, 7.0),
		agri.Or(q.Soil.N, 50),
		agri.Or(q.Soil.P, 30),
		agri.Or(q.Soil.K, 40),
		agri.Or(q.Today.Temperature, 25),
		agri.Or(q.Today.Humidity, 60),
	}
}

type SpoilageQuery struct {
	Weather []agri.WeatherDay
	Storage agri.StorageConditions
}

// Features is the spoilage model input vector in training order.
func (q SpoilageQuery) Features() []float64 {
	today := agri.FirstDay(q.Weather)
	return []float64{
		agri.Or(today.Temperature, 25),
		agri.Or(today.Humidity, 60),
		agri.Or(today.Rainfall, 0),
		agri.Or(q.Storage.Temp, 20),
		agri.Or(q.Storage.Humidity, 60),
		agri.Or(q.Storage.Transit, 0),
	}
}
