package agri

import (
	"encoding/json"
	"math"
	"testing"
)

func TestOrUsesDefaultForMissingReading(t *testing.T) {
	var day WeatherDay
	if err := json.Unmarshal([]byte(`{"humidity": 82}`), &day); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := Or(day.Humidity, 50); got != 82 {
		t.Fatalf("expected humidity 82, got %v", got)
	}
	if got := Or(day.Temperature, 25); got != 25 {
		t.Fatalf("expected default temperature 25, got %v", got)
	}
}

func TestFirstDayEmptySequence(t *testing.T) {
	d := FirstDay(nil)
	if d.Temperature != nil || d.Humidity != nil || d.Rainfall != nil {
		t.Fatalf("expected empty day, got %+v", d)
	}
}

func TestRound(t *testing.T) {
	if got := Round(1500*1.15, 2); got != 1725 {
		t.Fatalf("expected 1725, got %v", got)
	}
	if got := Round(0.33333, 3); got != 0.333 {
		t.Fatalf("expected 0.333, got %v", got)
	}
	if got := Round(math.Inf(1), 2); !math.IsInf(got, 1) {
		t.Fatalf("expected +Inf passthrough, got %v", got)
	}
}

func TestClamp01(t *testing.T) {
	if Clamp01(-0.2) != 0 || Clamp01(1.7) != 1 || Clamp01(0.4) != 0.4 {
		t.Fatal("clamp out of range")
	}
}
