// Package simulator projects produce quality over a fixed seven-day horizon
// from storage, transit and forecast conditions.
package simulator

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
)

const Horizon = 7

const (
	RiskCritical = "CRITICAL"
	RiskHigh     = "HIGH"
	RiskMedium   = "MEDIUM"
	RiskLow      = "LOW"
)

// BaseRates are daily decay fractions per crop bucket.
var BaseRates = map[string]float64{
	"vegetable": 0.08,
	"fruit":     0.06,
	"grain":     0.02,
	"pulses":    0.03,
	"default":   0.05,
}

var Advisories = map[string]string{
	RiskCritical: "Immediate sale recommended - high spoilage expected!",
	RiskHigh:     "Sell within 2-3 days to minimize losses",
	RiskMedium:   "Monitor conditions closely, sale within 5 days recommended",
	RiskLow:      "Safe to store, maintain current conditions",
}

// Params mirrors the request body. Nil fields take their defaults.
type Params struct {
	CropType        string            `json:"crop_type"`
	Quantity        *float64          `json:"quantity,omitempty"`
	InitialQuality  *float64          `json:"initial_quality,omitempty"`
	StorageTemp     *float64          `json:"storage_temp,omitempty"`
	StorageHumidity *float64          `json:"storage_humidity,omitempty"`
	TransitHours    *float64          `json:"transit_hours,omitempty"`
	Weather         []agri.WeatherDay `json:"weather,omitempty"`
}

type DayProjection struct {
	Day                int     `json:"day"`
	SpoilageRate       float64 `json:"spoilage_rate"`
	CumulativeSpoilage float64 `json:"cumulative_spoilage"`
	RemainingQuality   float64 `json:"remaining_quality"`
}

type Factors struct {
	TemperatureImpact float64 `json:"temperature_impact"`
	HumidityImpact    float64 `json:"humidity_impact"`
	TransitImpact     float64 `json:"transit_impact"`
	WeatherImpact     float64 `json:"weather_impact"`
}

type OptimalConditions struct {
	SuggestedTemp     string `json:"suggested_temp"`
	SuggestedHumidity string `json:"suggested_humidity"`
	MaxTransitHours   int    `json:"max_transit_hours"`
}

var Optimal = OptimalConditions{
	SuggestedTemp:     "4-10°C",
	SuggestedHumidity: "40-60%",
	MaxTransitHours:   6,
}

type Trajectory struct {
	Days                 []DayProjection   `json:"simulation_results"`
	FinalSpoilagePercent float64           `json:"final_spoilage_percent"`
	RiskLevel            string            `json:"risk_level"`
	Recommendation       string            `json:"recommendation"`
	Factors              Factors           `json:"factors"`
	OptimalConditions    OptimalConditions `json:"optimal_conditions"`
	Timestamp            time.Time         `json:"timestamp"`

	CropType string  `json:"-"`
	Quantity float64 `json:"-"`
}

// Inputs is Params with every default applied.
type Inputs struct {
	CropType        string
	Quantity        float64
	InitialQuality  float64
	StorageTemp     float64
	StorageHumidity float64
	TransitHours    float64
	Weather         []agri.WeatherDay
}

// Resolve applies defaults and rejects out-of-range values.
func (p Params) Resolve() (Inputs, error) {
	in := Inputs{
		CropType:        strings.TrimSpace(p.CropType),
		Quantity:        agri.Or(p.Quantity, 100),
		InitialQuality:  agri.Or(p.InitialQuality, 1.0),
		StorageTemp:     agri.Or(p.StorageTemp, 20),
		StorageHumidity: agri.Or(p.StorageHumidity, 60),
		TransitHours:    agri.Or(p.TransitHours, 0),
		Weather:         p.Weather,
	}
	if in.CropType == "" {
		in.CropType = "vegetable"
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"quantity", in.Quantity},
		{"initial_quality", in.InitialQuality},
		{"storage_temp", in.StorageTemp},
		{"storage_humidity", in.StorageHumidity},
		{"transit_hours", in.TransitHours},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return Inputs{}, &ParamError{Field: f.name, Message: "must be a finite number"}
		}
	}
	if in.InitialQuality < 0 || in.InitialQuality > 1 {
		return Inputs{}, &ParamError{Field: "initial_quality", Message: "must be between 0 and 1"}
	}
	if in.TransitHours < 0 {
		return Inputs{}, &ParamError{Field: "transit_hours", Message: "must be >= 0"}
	}
	return in, nil
}

type ParamError struct {
	Field   string
	Message string
}

func (e *ParamError) Error() string { return fmt.Sprintf("invalid %s: %s", e.Field, e.Message) }

// Simulate validates p and runs the projection.
func Simulate(p Params) (Trajectory, error) {
	in, err := p.Resolve()
	if err != nil {
		return Trajectory{}, err
	}
	return Project(in), nil
}

// Project computes the daily rate once and applies it for every step.
func Project(in Inputs) Trajectory {
	base, ok := BaseRates[strings.ToLower(in.CropType)]
	if !ok {
		base = BaseRates["default"]
	}
	tf := TempFactor(in.StorageTemp)
	hf := HumidityFactor(in.StorageHumidity)
	xf := TransitFactor(in.TransitHours)
	wi := WeatherImpact(in.Weather)
	rate := base*tf*hf*xf + wi

	quality := in.InitialQuality
	days := make([]DayProjection, 0, Horizon)
	for day := 1; day <= Horizon; day++ {
		quality = math.Max(0, quality-quality*rate)
		days = append(days, DayProjection{
			Day:                day,
			SpoilageRate:       agri.Round(rate*100, 2),
			CumulativeSpoilage: agri.Round((1-quality)*100, 2),
			RemainingQuality:   agri.Round(quality*100, 1),
		})
	}

	final := (1 - quality) * 100
	level := Classify(final)
	return Trajectory{
		Days:                 days,
		FinalSpoilagePercent: agri.Round(final, 2),
		RiskLevel:            level,
		Recommendation:       Advisories[level],
		Factors: Factors{
			TemperatureImpact: agri.Round((tf-1)*100, 1),
			HumidityImpact:    agri.Round((hf-1)*100, 1),
			TransitImpact:     agri.Round((xf-1)*100, 1),
			WeatherImpact:     agri.Round(wi*100, 1),
		},
		OptimalConditions: Optimal,
		CropType:          in.CropType,
		Quantity:          in.Quantity,
	}
}

func TempFactor(temp float64) float64 {
	switch {
	case temp > 25:
		return 2.0
	case temp > 20:
		return 1.5
	case temp < 4:
		return 0.8
	default:
		return 1.0
	}
}

func HumidityFactor(humidity float64) float64 {
	switch {
	case humidity > 80:
		return 1.8
	case humidity > 70:
		return 1.3
	case humidity < 40:
		return 1.1
	default:
		return 1.0
	}
}

func TransitFactor(hours float64) float64 {
	return 1 + (hours/24)*0.5
}

// WeatherImpact looks at the first three forecast days only.
func WeatherImpact(weather []agri.WeatherDay) float64 {
	impact := 0.0
	for i, day := range weather {
		if i == 3 {
			break
		}
		if agri.Or(day.Rainfall, 0) > 10 {
			impact += 0.02
		}
		if agri.Or(day.Humidity, 0) > 80 {
			impact += 0.03
		}
	}
	return impact
}

// Classify buckets final spoilage: > 50 critical, > 30 high, > 15 medium.
func Classify(finalSpoilage float64) string {
	switch {
	case finalSpoilage > 50:
		return RiskCritical
	case finalSpoilage > 30:
		return RiskHigh
	case finalSpoilage > 15:
		return RiskMedium
	default:
		return RiskLow
	}
}
