package httpapi

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
	"github.com/joelkehle/agrichain-advisor/internal/engine"
	"github.com/joelkehle/agrichain-advisor/internal/heuristics"
)

type pricePredictRequest struct {
	CropName    string   `json:"crop_name"`
	Region      string   `json:"region"`
	Quantity    *float64 `json:"quantity"`
	SoilPH      *float64 `json:"soil_ph"`
	SoilN       *float64 `json:"soil_n"`
	SoilP       *float64 `json:"soil_p"`
	SoilK       *float64 `json:"soil_k"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

type spoilagePredictRequest struct {
	Temperature     *float64 `json:"temperature"`
	Humidity        *float64 `json:"humidity"`
	Rainfall        *float64 `json:"rainfall"`
	StorageTemp     *float64 `json:"storage_temp"`
	StorageHumidity *float64 `json:"storage_humidity"`
	TransitHours    *float64 `json:"transit_hours"`
}

// decodeRequired unmarshals blob into dst after checking that every named
// field is present and not null, in the order given.
func decodeRequired(blob []byte, dst any, fields ...string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return &engine.UnhandledError{Err: err}
	}
	for _, f := range fields {
		v, ok := raw[f]
		if !ok || string(v) == "null" {
			return validationError("Missing required field: %s", f)
		}
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		return &engine.UnhandledError{Err: err}
	}
	return nil
}

func (s *Server) handlePredictPrice(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	blob, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req pricePredictRequest
	if err := decodeRequired(blob, &req, "quantity", "soil_ph", "soil_n", "soil_p", "soil_k"); err != nil {
		writeError(w, err)
		return
	}
	if q := *req.Quantity; math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
		writeError(w, &engine.ValidationError{Field: "quantity", Message: "must be greater than 0"})
		return
	}
	res := s.engine.ResolvePrice(r.Context(), engine.PriceQuery{
		CropName: req.CropName,
		Region:   req.Region,
		Quantity: *req.Quantity,
		Soil:     agri.SoilSample{PH: req.SoilPH, N: req.SoilN, P: req.SoilP, K: req.SoilK},
		Today:    agri.WeatherDay{Temperature: req.Temperature, Humidity: req.Humidity},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"predicted_price": agri.Round(res.Value, 2),
		"unit":            "Rs/quintal",
		"model":           res.Source,
	})
}

func (s *Server) handlePredictSpoilage(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	blob, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req spoilagePredictRequest
	if err := decodeRequired(blob, &req, "temperature", "humidity"); err != nil {
		writeError(w, err)
		return
	}
	rain := agri.Float(agri.Or(req.Rainfall, 0))
	res := s.engine.ResolveSpoilage(r.Context(), engine.SpoilageQuery{
		Weather: []agri.WeatherDay{{Temperature: req.Temperature, Humidity: req.Humidity, Rainfall: rain}},
		Storage: agri.StorageConditions{
			Temp:     agri.Float(agri.Or(req.StorageTemp, 20)),
			Humidity: agri.Float(agri.Or(req.StorageHumidity, 60)),
			Transit:  agri.Float(agri.Or(req.TransitHours, 0)),
		},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"spoilage_risk": agri.Round(res.Value, 3),
		"risk_level":    heuristics.RiskLevel(res.Value),
		"model":         res.Source,
	})
}

type featureDoc struct {
	Features    []string  `json:"features"`
	Importance  []float64 `json:"importance"`
	Description string    `json:"description"`
}

var featureDocs = map[string]featureDoc{
	"price_model": {
		Features:    []string{"quantity", "soil_ph", "soil_nitrogen", "soil_phosphorus", "soil_potassium", "temperature", "humidity"},
		Importance:  []float64{0.15, 0.2, 0.15, 0.15, 0.15, 0.1, 0.1},
		Description: "Features used for price prediction",
	},
	"spoilage_model": {
		Features:    []string{"temperature", "humidity", "rainfall", "storage_temp", "storage_humidity", "transit_hours"},
		Importance:  []float64{0.25, 0.25, 0.15, 0.15, 0.12, 0.08},
		Description: "Features used for spoilage risk prediction",
	},
	"soil_model": {
		Features:    []string{"ph", "nitrogen", "phosphorus", "potassium", "organic_matter"},
		Importance:  []float64{0.3, 0.25, 0.2, 0.15, 0.1},
		Description: "Features used for soil health analysis",
	},
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, featureDocs)
}
