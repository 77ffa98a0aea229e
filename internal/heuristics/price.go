package heuristics

import (
	"strings"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
)

const (
	SourceFallback = "fallback"

	FallbackConfidence = 0.65
	DefaultBasePrice   = 2000.0
	BulkThreshold      = 100.0
	BulkDiscount       = 0.98
)

type PriceEstimate struct {
	Price      float64 `json:"predicted_price"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"model_used"`
}

// BasePrices are Rs/quintal keyed by lower-cased crop name.
var BasePrices = map[string]float64{
	"tomato":      1500,
	"onion":       1200,
	"wheat":       2200,
	"cotton":      6500,
	"soybean":     4500,
	"orange":      4000,
	"pomegranate": 8000,
	"rice":        2100,
	"maize":       1900,
	"potato":      1200,
	"gram":        5000,
	"mustard":     5200,
	"sugarcane":   350,
	"banana":      800,
}

type RegionMultiplier struct {
	Key    string
	Factor float64
}

// RegionMultipliers is scanned in order and the first key contained in the
// region wins. Order matters: "nagpur, maharashtra" resolves to maharashtra.
var RegionMultipliers = []RegionMultiplier{
	{"maharashtra", 1.1},
	{"nagpur", 1.15},
	{"mumbai", 1.2},
	{"pune", 1.1},
	{"gujarat", 1.05},
	{"delhi", 1.15},
	{"haryana", 1.0},
	{"punjab", 1.0},
	{"rajasthan", 0.95},
	{"karnataka", 1.05},
	{"tamil nadu", 1.1},
	{"west bengal", 1.0},
	{"uttar pradesh", 0.95},
	{"madhya pradesh", 0.9},
}

func BasePrice(cropName string) float64 {
	if p, ok := BasePrices[strings.ToLower(cropName)]; ok {
		return p
	}
	return DefaultBasePrice
}

func RegionFactor(region string) float64 {
	r := strings.ToLower(region)
	for _, m := range RegionMultipliers {
		if strings.Contains(r, m.Key) {
			return m.Factor
		}
	}
	return 1.0
}

// PriceFallback estimates a per-quintal price from the base table, the first
// matching region multiplier and a flat bulk discount above 100 quintals.
func PriceFallback(cropName, region string, quantity float64) PriceEstimate {
	price := BasePrice(cropName) * RegionFactor(region)
	if quantity > BulkThreshold {
		price *= BulkDiscount
	}
	return PriceEstimate{
		Price:      agri.Round(price, 2),
		Confidence: FallbackConfidence,
		Source:     SourceFallback,
	}
}
