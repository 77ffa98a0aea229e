package heuristics

import (
	"math"
	"strings"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
)

type Range struct {
	Min float64
	Max float64
}

type SoilRanges struct {
	Crop string
	PH   Range
	N    Range
	P    Range
	K    Range
}

// CropSoilRanges are optimal readings per crop, matched on the lower-cased
// name. Crops not listed have no soil score.
var CropSoilRanges = []SoilRanges{
	{Crop: "wheat", PH: Range{6.0, 7.0}, N: Range{40, 60}, P: Range{20, 40}, K: Range{20, 30}},
	{Crop: "rice", PH: Range{5.5, 7.0}, N: Range{50, 80}, P: Range{25, 50}, K: Range{30, 50}},
	{Crop: "cotton", PH: Range{5.5, 8.0}, N: Range{50, 100}, P: Range{25, 50}, K: Range{30, 60}},
	{Crop: "sugarcane", PH: Range{6.0, 7.5}, N: Range{150, 200}, P: Range{50, 100}, K: Range{80, 120}},
	{Crop: "onion", PH: Range{6.0, 7.0}, N: Range{40, 60}, P: Range{20, 40}, K: Range{30, 50}},
	{Crop: "tomato", PH: Range{6.0, 6.8}, N: Range{50, 80}, P: Range{25, 50}, K: Range{30, 60}},
	{Crop: "potato", PH: Range{5.5, 6.5}, N: Range{60, 100}, P: Range{30, 60}, K: Range{40, 80}},
	{Crop: "maize", PH: Range{5.5, 7.0}, N: Range{60, 80}, P: Range{30, 50}, K: Range{30, 40}},
}

func SoilRangesFor(cropName string) (SoilRanges, bool) {
	name := strings.ToLower(strings.TrimSpace(cropName))
	for _, r := range CropSoilRanges {
		if r.Crop == name {
			return r, true
		}
	}
	return SoilRanges{}, false
}

// RangeScore is 1 inside [Min, Max] and falls off linearly with the distance
// outside it, relative to the nearer bound (at least 1). A missing reading
// scores 0.
func RangeScore(v *float64, r Range) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	x := *v
	switch {
	case x >= r.Min && x <= r.Max:
		return 1
	case x < r.Min:
		return math.Max(0, 1-(r.Min-x)/math.Max(r.Min, 1))
	default:
		return math.Max(0, 1-(x-r.Max)/math.Max(r.Max, 1))
	}
}

// SoilScore averages the pH, N, P and K range scores as a whole percentage.
// ok is false when the crop has no optimal ranges or the sample has no
// readings at all.
func SoilScore(cropName string, soil agri.SoilSample) (score int, ok bool) {
	r, ok := SoilRangesFor(cropName)
	if !ok || soil == (agri.SoilSample{}) {
		return 0, false
	}
	avg := (RangeScore(soil.PH, r.PH) + RangeScore(soil.N, r.N) + RangeScore(soil.P, r.P) + RangeScore(soil.K, r.K)) / 4
	return int(agri.Round(avg*100, 0)), true
}
