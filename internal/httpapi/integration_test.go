//go:build integration

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joelkehle/agrichain-advisor/internal/model"
	"github.com/joelkehle/agrichain-advisor/internal/store"
	"github.com/joelkehle/agrichain-advisor/internal/training"
)

func postHTTP(t *testing.T, url string, body any) map[string]any {
	t.Helper()
	blob, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post %s: status=%d body=%s", url, resp.StatusCode, raw)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}

// TestTrainThenRecommend drives the real registry, sqlite store and command
// trainer: recommendations fall back until a price model is trained, then use it.
func TestTrainThenRecommend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	modelsDir := filepath.Join(dir, "models")
	logger := log.New(io.Discard, "", 0)

	script := filepath.Join(dir, "train.sh")
	err := os.WriteFile(script, []byte(`#!/bin/sh
cat >/dev/null
echo '{"kind":"linear","intercept":2100,"coefficients":[0,0,0,0,0,0,0],"metrics":{"r2":0.9}}'
`), 0o755)
	if err != nil {
		t.Fatal(err)
	}

	st, err := store.NewSQLiteStore(ctx, filepath.Join(dir, "advisor.db"), store.Config{Logger: logger})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer st.Close()

	registry := model.NewRegistry(model.RegistryConfig{
		Loader:         &model.FileLoader{Dir: modelsDir},
		PredictTimeout: time.Second,
		Logger:         logger,
	})
	trainer := training.NewCommandTrainer(script, modelsDir)
	trainer.Logger = logger

	srv := httptest.NewServer(NewServer(Config{Models: registry, Store: st, Trainer: trainer, Logger: logger}))
	defer srv.Close()

	req := map[string]any{"crop_name": "tomato", "region": "Nagpur", "quantity": 50}
	before := postHTTP(t, srv.URL+"/recommend", req)
	if before["model_used"] != "fallback, fallback" || before["predicted_price"] != 1725.0 {
		t.Fatalf("expected heuristic recommendation, got %v", before)
	}

	trained := postHTTP(t, srv.URL+"/train/price", map[string]any{"rows": 100})
	if trained["status"] != "success" {
		t.Fatalf("train failed: %v", trained)
	}

	after := postHTTP(t, srv.URL+"/recommend", req)
	if after["model_used"] != "price_model, fallback" || after["predicted_price"] != 2100.0 {
		t.Fatalf("expected trained price model, got %v", after)
	}

	recs, err := st.ListRecommendations(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].ModelUsed != "price_model, fallback" {
		t.Fatalf("unexpected history %+v", recs)
	}
}
