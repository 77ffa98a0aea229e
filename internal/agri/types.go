// Package agri holds the request-side domain types shared by the decision
// engine, the fallback heuristics and the spoilage simulator.
package agri

import (
	"math"

	"github.com/shopspring/decimal"
)

// SoilSample readings are optional; consumers substitute their own defaults.
type SoilSample struct {
	PH *float64 `json:"ph,omitempty"`
	N  *float64 `json:"n,omitempty"`
	P  *float64 `json:"p,omitempty"`
	K  *float64 `json:"k,omitempty"`
}

type StorageConditions struct {
	Temp     *float64 `json:"temp,omitempty"`
	Humidity *float64 `json:"humidity,omitempty"`
	Transit  *float64 `json:"transit,omitempty"`
}

// WeatherDay is one forecast day. Index 0 of a sequence is today.
type WeatherDay struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Rainfall    *float64 `json:"rainfall,omitempty"`
}

// MarketQuote is a price offered by a mandi, in Rs/quintal.
type MarketQuote struct {
	MandiName string  `json:"mandi_name"`
	Price     float64 `json:"price"`
}

// Or returns *v, or def when v is nil.
func Or(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Float returns a pointer to v, for building optional readings.
func Float(v float64) *float64 { return &v }

// FirstDay returns weather[0], or an empty day when the sequence is empty.
func FirstDay(weather []WeatherDay) WeatherDay {
	if len(weather) == 0 {
		return WeatherDay{}
	}
	return weather[0]
}

// Round rounds half away from zero to the given number of decimal places.
// Non-finite values are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
