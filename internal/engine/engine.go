// Package engine turns a crop snapshot into a point-of-sale recommendation,
// preferring trained models and falling back to heuristics when a model is
// absent or misbehaves.
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
	"github.com/joelkehle/agrichain-advisor/internal/heuristics"
	"github.com/joelkehle/agrichain-advisor/internal/model"
)

var tracer = otel.Tracer("github.com/joelkehle/agrichain-advisor/internal/engine")

// Predictors is the slice of the model registry the engine depends on.
type Predictors interface {
	TryPredict(ctx context.Context, name string, features []float64) model.Result
}

type Config struct {
	Predictors Predictors
	Clock      func() time.Time
	Logger     *log.Logger
}

type Engine struct {
	predictors Predictors
	clock      func() time.Time
	logger     *log.Logger
}

func New(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Engine{predictors: cfg.Predictors, clock: cfg.Clock, logger: cfg.Logger}
}

// Recommend resolves price and risk, arbitrates market quotes and composes
// the advisory. A panic anywhere below is reported once as UnhandledError.
func (e *Engine) Recommend(ctx context.Context, snap CropSnapshot) (rec Recommendation, err error) {
	ctx, span := tracer.Start(ctx, "engine.Recommend")
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			rec = Recommendation{}
			err = &UnhandledError{Err: fmt.Errorf("recommend: %v", r)}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	qty, err := validate(snap)
	if err != nil {
		return Recommendation{}, err
	}

	price := e.ResolvePrice(ctx, PriceQuery{
		CropName: snap.CropName,
		Region:   snap.Region,
		Quantity: qty,
		Soil:     snap.Soil,
		Today:    agri.FirstDay(snap.Weather),
	})
	risk := e.ResolveSpoilage(ctx, SpoilageQuery{Weather: snap.Weather, Storage: snap.Storage})

	mandi, quoted := BestMarket(snap.MandiPrices)
	if quoted > 0 {
		price.Value = quoted
	}

	transport := TransportCost(qty)
	rec = Recommendation{
		SuggestedMandi:        mandi,
		PredictedPrice:        agri.Round(price.Value, 2),
		PredictedProfit:       Profit(price.Value, qty, transport, risk.Value),
		SpoilageRisk:          agri.Round(risk.Value, 3),
		HarvestWindow:         HarvestWindow(snap.Weather, risk.Value),
		ExplanationText:       Explain(price.Source, risk.Source, risk.Value),
		TransportCostEstimate: agri.Round(transport, 2),
		ModelUsed:             price.Source + ", " + risk.Source,
		Timestamp:             e.clock(),
		PriceSource:           price.Source,
		SpoilageSource:        risk.Source,
		Quantity:              qty,
	}
	span.SetAttributes(
		attribute.String("recommend.price_source", price.Source),
		attribute.String("recommend.spoilage_source", risk.Source),
	)
	return rec, nil
}

func validate(snap CropSnapshot) (float64, error) {
	qty := agri.Or(snap.Quantity, DefaultQuantity)
	if math.IsNaN(qty) || math.IsInf(qty, 0) {
		return 0, &ValidationError{Field: "quantity", Message: "must be a finite number"}
	}
	if qty <= 0 {
		return 0, &ValidationError{Field: "quantity", Message: "must be greater than 0"}
	}
	for i, q := range snap.MandiPrices {
		if q.Price < 0 || math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
			return 0, &ValidationError{Field: fmt.Sprintf("mandi_prices[%d].price", i), Message: "must be a finite number >= 0"}
		}
	}
	return qty, nil
}

// ResolvePrice asks the price model and falls back to the heuristic on any
// absence or failure.
func (e *Engine) ResolvePrice(ctx context.Context, q PriceQuery) Resolution {
	if res, ok := e.try(ctx, model.NamePrice, q.Features()); ok {
		return Resolution{Value: res, Source: SourcePriceModel}
	}
	est := heuristics.PriceFallback(q.CropName, q.Region, q.Quantity)
	return Resolution{Value: est.Price, Source: est.Source}
}

// ResolveSpoilage is ResolvePrice for spoilage risk. Model output is clamped
// to [0, 1].
func (e *Engine) ResolveSpoilage(ctx context.Context, q SpoilageQuery) Resolution {
	if res, ok := e.try(ctx, model.NameSpoilage, q.Features()); ok {
		return Resolution{Value: agri.Clamp01(res), Source: SourceSpoilageModel}
	}
	est := heuristics.SpoilageFallback(q.Weather, q.Storage)
	return Resolution{Value: est.Risk, Source: est.Source}
}

func (e *Engine) try(ctx context.Context, name string, features []float64) (float64, bool) {
	if e.predictors == nil {
		return 0, false
	}
	res := e.predictors.TryPredict(ctx, name, features)
	switch {
	case res.OK():
		return res.Value, true
	case res.Unavailable():
		return 0, false
	default:
		e.logger.Printf("%s model predict failed, using fallback: %v", name, res.Err)
		return 0, false
	}
}
