// Package training delegates model fitting to an external command and
// installs the artifact it prints.
package training

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/joelkehle/agrichain-advisor/internal/model"
)

var ErrNoTrainer = errors.New("no training command configured")

const DefaultTimeout = 10 * time.Minute

type Result struct {
	ModelType string             `json:"model_type"`
	Kind      string             `json:"kind"`
	Path      string             `json:"artifact_path"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	TrainedAt time.Time          `json:"trained_at"`
}

type Trainer interface {
	Train(ctx context.Context, modelType string, payload []byte) (Result, error)
}

// CommandTrainer runs Command with the model type as its last argument and
// the request body on stdin. Stdout must be a model artifact.
type CommandTrainer struct {
	Command   string
	Args      []string
	ModelsDir string
	Timeout   time.Duration
	Clock     func() time.Time
	Logger    *log.Logger
}

// NewCommandTrainer splits a configured command line on whitespace.
func NewCommandTrainer(commandLine, modelsDir string) *CommandTrainer {
	fields := strings.Fields(commandLine)
	t := &CommandTrainer{ModelsDir: modelsDir}
	if len(fields) > 0 {
		t.Command = fields[0]
		t.Args = fields[1:]
	}
	return t
}

func (t *CommandTrainer) Train(ctx context.Context, modelType string, payload []byte) (Result, error) {
	if t == nil || strings.TrimSpace(t.Command) == "" {
		return Result{}, ErrNoTrainer
	}
	if !model.IsKnown(modelType) {
		return Result{}, fmt.Errorf("unknown model type %q", modelType)
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clock := t.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := t.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), t.Args...), modelType)
	cmd := exec.CommandContext(ctx, t.Command, args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(os.Environ(), "MODEL_TYPE="+modelType, "MODELS_DIR="+t.ModelsDir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Printf("training %s model via %s", modelType, t.Command)
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return Result{}, fmt.Errorf("train %s: %w: %s", modelType, err, msg)
		}
		return Result{}, fmt.Errorf("train %s: %w", modelType, err)
	}

	art, err := model.DecodeArtifact(out)
	if err != nil {
		return Result{}, fmt.Errorf("train %s: trainer output: %w", modelType, err)
	}
	path := model.ArtifactPath(t.ModelsDir, modelType)
	if err := model.WriteArtifact(path, bytes.TrimSpace(out)); err != nil {
		return Result{}, fmt.Errorf("train %s: install artifact: %w", modelType, err)
	}
	trainedAt := clock().UTC()
	if art.TrainedAt != nil {
		trainedAt = *art.TrainedAt
	}
	logger.Printf("installed %s model artifact at %s", modelType, path)
	return Result{
		ModelType: modelType,
		Kind:      art.Kind,
		Path:      path,
		Metrics:   art.Metrics,
		TrainedAt: trainedAt,
	}, nil
}
