// Package model loads trained predictive artifacts and exposes them behind a
// single predict capability. Callers never see load or predict failures as
// panics: lookups return Available or Unavailable, predictions return a Result.
package model

import (
	"context"
	"errors"
	"fmt"
)

const (
	NamePrice    = "price"
	NameSpoilage = "spoilage"
	NameSoil     = "soil"
)

// KnownModels are the artifacts reported by health checks and accepted by training.
var KnownModels = []string{NamePrice, NameSpoilage, NameSoil}

func IsKnown(name string) bool {
	for _, n := range KnownModels {
		if n == name {
			return true
		}
	}
	return false
}

var ErrUnavailable = errors.New("model unavailable")

// Predictor is the only capability the decision engine needs from a model.
type Predictor interface {
	Predict(ctx context.Context, features []float64) (float64, error)
}

// Lookup is either Available or Unavailable.
type Lookup interface {
	isLookup()
}

type Available struct {
	Predictor Predictor
}

type Unavailable struct {
	Reason string
}

func (Available) isLookup()   {}
func (Unavailable) isLookup() {}

// PredictionError wraps a failure from a loaded model.
type PredictionError struct {
	Model string
	Err   error
}

func (e *PredictionError) Error() string { return fmt.Sprintf("%s model predict: %v", e.Model, e.Err) }
func (e *PredictionError) Unwrap() error { return e.Err }

// Result is the outcome of a single guarded prediction.
type Result struct {
	Value float64
	Err   error
}

func (r Result) OK() bool { return r.Err == nil }

func (r Result) Unavailable() bool { return errors.Is(r.Err, ErrUnavailable) }
