package heuristics

import "github.com/joelkehle/agrichain-advisor/internal/agri"

const BaseSpoilageRisk = 0.25

const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

type SpoilageEstimate struct {
	Risk   float64 `json:"spoilage_risk"`
	Level  string  `json:"risk_level"`
	Source string  `json:"model_used"`
}

// SpoilageFallback accumulates risk over every supplied weather day plus the
// storage conditions. Days compound; nothing is exclusive across days.
func SpoilageFallback(weather []agri.WeatherDay, storage agri.StorageConditions) SpoilageEstimate {
	risk := BaseSpoilageRisk
	for _, day := range weather {
		risk += weatherDayRisk(day)
	}
	risk += storageRisk(storage)
	risk = agri.Round(agri.Clamp01(risk), 3)
	return SpoilageEstimate{
		Risk:   risk,
		Level:  RiskLevel(risk),
		Source: SourceFallback,
	}
}

func weatherDayRisk(day agri.WeatherDay) float64 {
	humidity := agri.Or(day.Humidity, 50)
	rainfall := agri.Or(day.Rainfall, 0)
	temp := agri.Or(day.Temperature, 25)

	delta := 0.0
	if humidity > 80 {
		delta += 0.08
	} else if humidity > 70 {
		delta += 0.04
	}
	if rainfall > 20 {
		delta += 0.05
	}
	if temp > 30 {
		delta += 0.05
	} else if temp < 10 {
		delta -= 0.02
	}
	return delta
}

func storageRisk(s agri.StorageConditions) float64 {
	delta := 0.0
	if agri.Or(s.Temp, 20) > 25 {
		delta += 0.08
	}
	if agri.Or(s.Humidity, 60) > 70 {
		delta += 0.06
	}
	if agri.Or(s.Transit, 0) > 6 {
		delta += 0.05
	}
	return delta
}

// RiskLevel buckets a [0,1] risk score: > 0.5 high, > 0.25 medium, else low.
func RiskLevel(risk float64) string {
	switch {
	case risk > 0.5:
		return RiskHigh
	case risk > 0.25:
		return RiskMedium
	default:
		return RiskLow
	}
}
