package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/joelkehle/agrichain-advisor/internal/store"
)

const savedJSON = `{
  "crop_name": "onion",
  "region": "Pune",
  "quantity": 80,
  "recommendation": {
    "suggested_mandi": "Lasalgaon",
    "predicted_price": 1320,
    "predicted_profit": 79144,
    "spoilage_risk": 0.25,
    "harvest_window": "3-5 days",
    "explanation_text": "Based on fallback and fallback. Low spoilage risk (25%). Good conditions for storage and transport.",
    "transport_cost_estimate": 40,
    "model_used": "fallback, fallback",
    "timestamp": "2026-03-01T09:30:00Z"
  }
}`

type stubPDF struct{ html string }

func (s *stubPDF) Render(_ context.Context, doc string) ([]byte, error) {
	s.html = doc
	return []byte("%PDF"), nil
}

func loadSaved(t *testing.T) savedRecommendation {
	t.Helper()
	var saved savedRecommendation
	if err := json.Unmarshal([]byte(savedJSON), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return saved
}

func TestRenderMarkdownCarriesQuantity(t *testing.T) {
	out, err := render(context.Background(), loadSaved(t), store.RankActions(store.DefaultActions), "markdown", "", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	md := string(out)
	for _, want := range []string{"# Sale Recommendation: Onion (Pune)", "| Quantity | 80 quintal |", "| Suggested mandi | Lasalgaon |", "Humidity Management"} {
		if !strings.Contains(md, want) {
			t.Fatalf("missing %q in:\n%s", want, md)
		}
	}
}

func TestRenderPDFUsesHTMLDocument(t *testing.T) {
	pdf := &stubPDF{}
	out, err := render(context.Background(), loadSaved(t), nil, "pdf", t.TempDir(), pdf)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(out) != "%PDF" {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(pdf.html, "<title>Sale Recommendation</title>") {
		t.Fatalf("renderer did not receive a full document: %s", pdf.html)
	}
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	if _, err := render(context.Background(), loadSaved(t), nil, "docx", "", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRenderSoilSuitability(t *testing.T) {
	saved := loadSaved(t)
	out, err := render(context.Background(), saved, nil, "markdown", "", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(out), "Soil suitability") {
		t.Fatalf("no soil readings, no soil row:\n%s", out)
	}

	saved.CropName = "rice"
	if err := json.Unmarshal([]byte(`{"ph": 6.0, "n": 40, "p": 30}`), &saved.Soil); err != nil {
		t.Fatal(err)
	}
	out, err = render(context.Background(), saved, nil, "markdown", "", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), "| Soil suitability | 70% |") {
		t.Fatalf("expected soil row in:\n%s", out)
	}
}
