package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joelkehle/agrichain-advisor/internal/engine"
	"github.com/joelkehle/agrichain-advisor/internal/simulator"
	"github.com/joelkehle/agrichain-advisor/internal/store"
)

type recommendRequest struct {
	engine.CropSnapshot
	// UseStoredPrices fills in quotes from the store when none are supplied.
	UseStoredPrices bool `json:"use_stored_prices"`
	// UseForecast fetches the regional forecast when no weather is supplied.
	UseForecast bool `json:"use_forecast"`
}

// Body decode failures on the core endpoints are reported as 500, as for any
// other unhandled failure.
func decodeCore(r *http.Request, dst any) error {
	blob, err := readBody(r)
	if err != nil {
		return &engine.UnhandledError{Err: err}
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		return &engine.UnhandledError{Err: err}
	}
	return nil
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	var req recommendRequest
	if err := decodeCore(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.recommend(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) recommend(ctx context.Context, req recommendRequest) (engine.Recommendation, error) {
	snap := req.CropSnapshot
	if req.UseStoredPrices && len(snap.MandiPrices) == 0 && s.store != nil {
		prices, err := s.store.ListMarketPrices(ctx, snap.CropName)
		if err != nil {
			s.logger.Printf("stored prices unavailable for %q: %v", snap.CropName, err)
		}
		for _, p := range prices {
			snap.MandiPrices = append(snap.MandiPrices, quoteFrom(p))
		}
	}
	if req.UseForecast && len(snap.Weather) == 0 && s.weather != nil {
		days, err := s.weather.Forecast(ctx, snap.Region)
		if err != nil {
			s.logger.Printf("forecast unavailable for %q, continuing without weather: %v", snap.Region, err)
		}
		snap.Weather = days
	}
	s.logger.Printf("recommend: crop=%s region=%s", snap.CropName, snap.Region)
	rec, err := s.engine.Recommend(ctx, snap)
	if err != nil {
		return engine.Recommendation{}, err
	}
	s.saveHistory(ctx, snap, rec)
	return rec, nil
}

func (s *Server) saveHistory(ctx context.Context, snap engine.CropSnapshot, rec engine.Recommendation) {
	if s.store == nil {
		return
	}
	err := s.store.SaveRecommendation(ctx, store.Record{
		ID:              s.newID(),
		CropName:        snap.CropName,
		Region:          snap.Region,
		Quantity:        rec.Quantity,
		SuggestedMandi:  rec.SuggestedMandi,
		PredictedPrice:  rec.PredictedPrice,
		PredictedProfit: rec.PredictedProfit,
		SpoilageRisk:    rec.SpoilageRisk,
		HarvestWindow:   rec.HarvestWindow,
		ModelUsed:       rec.ModelUsed,
		CreatedAt:       rec.Timestamp,
	})
	if err != nil {
		s.logger.Printf("save recommendation history failed: %v", err)
	}
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	var p simulator.Params
	if err := decodeCore(r, &p); err != nil {
		writeError(w, err)
		return
	}
	traj, err := s.simulate(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, traj)
}

func (s *Server) simulate(ctx context.Context, p simulator.Params) (simulator.Trajectory, error) {
	_, span := tracer.Start(ctx, "simulator.Simulate")
	defer span.End()
	traj, err := simulator.Simulate(p)
	if err != nil {
		span.RecordError(err)
		return simulator.Trajectory{}, err
	}
	traj.Timestamp = s.clock()
	span.SetAttributes(attribute.String("simulator.risk_level", traj.RiskLevel))
	return traj, nil
}
