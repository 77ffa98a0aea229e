package model

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

const DefaultPredictTimeout = 2 * time.Second

var tracer = otel.Tracer("github.com/joelkehle/agrichain-advisor/internal/model")

// Loader materializes a named artifact into a Predictor.
type Loader interface {
	Load(ctx context.Context, name string) (Predictor, error)
}

type LoaderFunc func(ctx context.Context, name string) (Predictor, error)

func (f LoaderFunc) Load(ctx context.Context, name string) (Predictor, error) { return f(ctx, name) }

type RegistryConfig struct {
	Loader         Loader
	PredictTimeout time.Duration
	Logger         *log.Logger
}

// Registry caches successfully loaded predictors for the life of the process.
// Failed loads are not cached, so an artifact that appears later (for example
// after retraining) is picked up on the next lookup.
type Registry struct {
	loader  Loader
	timeout time.Duration
	logger  *log.Logger

	mu    sync.RWMutex
	cache map[string]Predictor
	group singleflight.Group
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.PredictTimeout <= 0 {
		cfg.PredictTimeout = DefaultPredictTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Registry{
		loader:  cfg.Loader,
		timeout: cfg.PredictTimeout,
		logger:  cfg.Logger,
		cache:   map[string]Predictor{},
	}
}

// Get never fails: load errors and panics come back as Unavailable.
func (r *Registry) Get(ctx context.Context, name string) Lookup {
	if p, ok := r.cached(name); ok {
		return Available{Predictor: p}
	}
	if r.loader == nil {
		return Unavailable{Reason: "no model loader configured"}
	}
	v, err, _ := r.group.Do(name, func() (any, error) {
		if p, ok := r.cached(name); ok {
			return p, nil
		}
		return r.load(ctx, name)
	})
	if err != nil {
		return Unavailable{Reason: err.Error()}
	}
	return Available{Predictor: v.(Predictor)}
}

func (r *Registry) cached(name string) (Predictor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.cache[name]
	return p, ok
}

func (r *Registry) load(ctx context.Context, name string) (p Predictor, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p = nil
			err = fmt.Errorf("load %s: panic: %v", name, rec)
		}
		if err != nil {
			r.logger.Printf("model %s unavailable: %v", name, err)
		}
	}()
	p, err = r.loader.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("load %s: loader returned no predictor", name)
	}
	r.mu.Lock()
	r.cache[name] = p
	r.mu.Unlock()
	r.logger.Printf("loaded %s model", name)
	return p, nil
}

// Preload attempts every named model once, typically at process start.
func (r *Registry) Preload(ctx context.Context, names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		_, ok := r.Get(ctx, n).(Available)
		out[n] = ok
	}
	return out
}

// Loaded reports which of the known models are currently usable, retrying
// any that are not yet loaded.
func (r *Registry) Loaded(ctx context.Context) map[string]bool {
	return r.Preload(ctx, KnownModels...)
}

// Reset drops a cached predictor so the next lookup reloads it from disk.
func (r *Registry) Reset(name string) {
	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()
	r.group.Forget(name)
}

// TryPredict looks the model up and runs one bounded prediction. Absence,
// errors, panics, timeouts and non-finite outputs all come back as Result.Err.
func (r *Registry) TryPredict(ctx context.Context, name string, features []float64) Result {
	ctx, span := tracer.Start(ctx, "model.TryPredict")
	defer span.End()
	span.SetAttributes(attribute.String("model.name", name))

	var res Result
	switch l := r.Get(ctx, name).(type) {
	case Available:
		res = r.predict(ctx, name, l.Predictor, features)
	case Unavailable:
		res = Result{Err: fmt.Errorf("%w: %s: %s", ErrUnavailable, name, l.Reason)}
	}

	outcome := "ok"
	switch {
	case res.Unavailable():
		outcome = "unavailable"
	case res.Err != nil:
		outcome = "error"
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	span.SetAttributes(attribute.String("model.outcome", outcome))
	return res
}

func (r *Registry) predict(ctx context.Context, name string, p Predictor, features []float64) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	in := append([]float64(nil), features...)
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- Result{Err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		v, err := p.Predict(ctx, in)
		done <- Result{Value: v, Err: err}
	}()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Result{Err: ctx.Err()}
	}
	if res.Err == nil && (math.IsNaN(res.Value) || math.IsInf(res.Value, 0)) {
		res.Err = errors.New("non-finite prediction")
	}
	if res.Err != nil {
		res = Result{Err: &PredictionError{Model: name, Err: res.Err}}
	}
	return res
}
