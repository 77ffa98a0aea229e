package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	KindLinear    = "linear"
	KindRemote    = "remote"
	KindAnthropic = "anthropic"
)

// Artifact is the on-disk bundle a training collaborator produces. Only the
// fields for its Kind are meaningful; metrics and feature names are informational.
type Artifact struct {
	Kind         string             `json:"kind"`
	Name         string             `json:"name,omitempty"`
	FeatureNames []string           `json:"feature_names,omitempty"`
	Intercept    float64            `json:"intercept,omitempty"`
	Coefficients []float64          `json:"coefficients,omitempty"`
	Means        []float64          `json:"means,omitempty"`
	Scales       []float64          `json:"scales,omitempty"`
	Endpoint     string             `json:"endpoint,omitempty"`
	Instruction  string             `json:"instruction,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	TrainedAt    *time.Time         `json:"trained_at,omitempty"`
}

func ArtifactPath(dir, name string) string {
	return filepath.Join(dir, name+"_model.json")
}

// DecodeArtifact parses and validates an artifact bundle.
func DecodeArtifact(blob []byte) (Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return Artifact{}, fmt.Errorf("decode artifact: %w", err)
	}
	a.Kind = strings.ToLower(strings.TrimSpace(a.Kind))
	switch a.Kind {
	case KindLinear:
		if len(a.Coefficients) == 0 {
			return Artifact{}, errors.New("linear artifact has no coefficients")
		}
		if len(a.Means) != 0 && len(a.Means) != len(a.Coefficients) {
			return Artifact{}, fmt.Errorf("linear artifact has %d means for %d coefficients", len(a.Means), len(a.Coefficients))
		}
		if len(a.Scales) != 0 && len(a.Scales) != len(a.Coefficients) {
			return Artifact{}, fmt.Errorf("linear artifact has %d scales for %d coefficients", len(a.Scales), len(a.Coefficients))
		}
	case KindRemote:
		if strings.TrimSpace(a.Endpoint) == "" {
			return Artifact{}, errors.New("remote artifact requires endpoint")
		}
	case KindAnthropic:
		if len(a.FeatureNames) == 0 {
			return Artifact{}, errors.New("anthropic artifact requires feature_names")
		}
	case "":
		return Artifact{}, errors.New("artifact kind is required")
	default:
		return Artifact{}, fmt.Errorf("unsupported artifact kind %q", a.Kind)
	}
	return a, nil
}

// WriteArtifact replaces path atomically so a concurrent load never sees a
// half-written bundle.
func WriteArtifact(path string, blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// FileLoader reads <Dir>/<name>_model.json and builds the matching predictor.
type FileLoader struct {
	Dir        string
	HTTPClient *http.Client
	// NewLLMCaller is consulted for anthropic artifacts. Nil means such
	// artifacts are unavailable.
	NewLLMCaller func() (LLMCaller, error)
}

func (l *FileLoader) Load(_ context.Context, name string) (Predictor, error) {
	path := ArtifactPath(l.Dir, name)
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact not found: %s", path)
		}
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	art, err := DecodeArtifact(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l.build(art)
}

func (l *FileLoader) build(a Artifact) (Predictor, error) {
	switch a.Kind {
	case KindLinear:
		return &LinearPredictor{artifact: a}, nil
	case KindRemote:
		return NewRemotePredictor(a.Endpoint, l.HTTPClient), nil
	case KindAnthropic:
		if l.NewLLMCaller == nil {
			return nil, errors.New("anthropic artifacts are not enabled")
		}
		caller, err := l.NewLLMCaller()
		if err != nil {
			return nil, err
		}
		return NewLLMPredictor(caller, a.FeatureNames, a.Instruction), nil
	default:
		return nil, fmt.Errorf("unsupported artifact kind %q", a.Kind)
	}
}

// LinearPredictor evaluates intercept + sum(coef * standardized feature).
type LinearPredictor struct {
	artifact Artifact
}

func NewLinearPredictor(a Artifact) *LinearPredictor { return &LinearPredictor{artifact: a} }

func (p *LinearPredictor) Predict(_ context.Context, features []float64) (float64, error) {
	a := p.artifact
	if len(features) != len(a.Coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d", len(a.Coefficients), len(features))
	}
	y := a.Intercept
	for i, x := range features {
		if len(a.Means) > 0 {
			x -= a.Means[i]
		}
		if len(a.Scales) > 0 && a.Scales[i] != 0 {
			x /= a.Scales[i]
		}
		y += a.Coefficients[i] * x
	}
	return y, nil
}
