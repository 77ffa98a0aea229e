package training

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joelkehle/agrichain-advisor/internal/model"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTrainer(t *testing.T, script, dir string) *CommandTrainer {
	return &CommandTrainer{
		Command:   script,
		ModelsDir: dir,
		Timeout:   10 * time.Second,
		Clock:     func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
		Logger:    log.New(io.Discard, "", 0),
	}
}

func TestCommandTrainerInstallsArtifact(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, `input=$(cat)
case "$input" in *epochs*) ;; *) echo "missing body" >&2; exit 3;; esac
[ "$1" = "price" ] || { echo "bad arg $1" >&2; exit 4; }
echo '{"kind":"linear","intercept":1500,"coefficients":[1,0,0,0,0,0,0],"metrics":{"r2":0.81}}'
`)
	res, err := newTrainer(t, script, dir).Train(context.Background(), model.NamePrice, []byte(`{"epochs":3}`))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if res.Kind != model.KindLinear || res.Metrics["r2"] != 0.81 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Path != model.ArtifactPath(dir, model.NamePrice) {
		t.Fatalf("unexpected path %s", res.Path)
	}
	blob, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := model.DecodeArtifact(blob); err != nil {
		t.Fatalf("installed artifact does not decode: %v", err)
	}
	if !res.TrainedAt.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected clock timestamp, got %v", res.TrainedAt)
	}
}

func TestCommandTrainerRejectsBadOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, "cat >/dev/null\necho 'trained!'\n")
	if _, err := newTrainer(t, script, dir).Train(context.Background(), model.NameSoil, nil); err == nil {
		t.Fatal("expected error for non-artifact output")
	}
	if _, err := os.Stat(model.ArtifactPath(dir, model.NameSoil)); !os.IsNotExist(err) {
		t.Fatal("no artifact should be installed for bad output")
	}
}

func TestCommandTrainerSurfacesStderr(t *testing.T) {
	script := writeScript(t, "echo 'dataset missing' >&2\nexit 2\n")
	_, err := newTrainer(t, script, t.TempDir()).Train(context.Background(), model.NameSpoilage, nil)
	if err == nil || !strings.Contains(err.Error(), "dataset missing") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestCommandTrainerNotConfigured(t *testing.T) {
	_, err := NewCommandTrainer("", t.TempDir()).Train(context.Background(), model.NamePrice, nil)
	if !errors.Is(err, ErrNoTrainer) {
		t.Fatalf("expected ErrNoTrainer, got %v", err)
	}
}

func TestNewCommandTrainerSplitsArgs(t *testing.T) {
	tr := NewCommandTrainer("python3 training/train.py --fast", "models")
	if tr.Command != "python3" || len(tr.Args) != 2 || tr.Args[1] != "--fast" {
		t.Fatalf("unexpected command split %+v", tr)
	}
}

func TestCommandTrainerRejectsUnknownType(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	if _, err := newTrainer(t, script, t.TempDir()).Train(context.Background(), "yield", nil); err == nil {
		t.Fatal("expected unknown model type error")
	}
}
