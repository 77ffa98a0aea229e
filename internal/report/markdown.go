// Package report renders a recommendation, and optionally a spoilage
// projection, as markdown, HTML or PDF.
package report

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/joelkehle/agrichain-advisor/internal/engine"
	"github.com/joelkehle/agrichain-advisor/internal/heuristics"
	"github.com/joelkehle/agrichain-advisor/internal/simulator"
	"github.com/joelkehle/agrichain-advisor/internal/store"
)

// MaxActions caps how many preservation actions a report lists.
const MaxActions = 3

type Input struct {
	CropName       string
	Region         string
	Recommendation engine.Recommendation
	Trajectory     *simulator.Trajectory
	Actions        []store.PreservationAction
	// SoilScore is a 0-100 suitability score; nil omits the row.
	SoilScore *int
}

func BuildMarkdown(in Input) string {
	rec := in.Recommendation
	var b strings.Builder

	title := "Sale Recommendation"
	if crop := strings.TrimSpace(in.CropName); crop != "" {
		title += ": " + titleCase(crop)
	}
	if region := strings.TrimSpace(in.Region); region != "" {
		title += " (" + region + ")"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if !rec.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Generated %s\n\n", rec.Timestamp.UTC().Format("January 2, 2006 15:04 MST"))
	}

	b.WriteString("## Summary\n\n| Item | Value |\n|---|---|\n")
	row(&b, "Suggested mandi", rec.SuggestedMandi)
	row(&b, "Predicted price", "Rs "+money(rec.PredictedPrice)+" / quintal")
	if rec.Quantity > 0 {
		row(&b, "Quantity", decimal.NewFromFloat(rec.Quantity).String()+" quintal")
	}
	row(&b, "Transport cost estimate", "Rs "+money(rec.TransportCostEstimate))
	row(&b, "Predicted profit", "Rs "+money(rec.PredictedProfit))
	row(&b, "Spoilage risk", fmt.Sprintf("%s (%s)", percent(rec.SpoilageRisk), heuristics.RiskLevel(rec.SpoilageRisk)))
	row(&b, "Harvest window", rec.HarvestWindow)
	if in.SoilScore != nil {
		row(&b, "Soil suitability", fmt.Sprintf("%d%%", *in.SoilScore))
	}
	row(&b, "Sources", rec.ModelUsed)
	b.WriteString("\n")

	if rec.ExplanationText != "" {
		b.WriteString("## Assessment\n\n")
		b.WriteString(rec.ExplanationText + "\n\n")
	}

	if t := in.Trajectory; t != nil {
		writeTrajectory(&b, t)
	}

	if len(in.Actions) > 0 {
		b.WriteString("## Preservation Actions\n\n| Action | Cost | Effectiveness | What to do |\n|---|---|---|---|\n")
		for i, a := range in.Actions {
			if i == MaxActions {
				break
			}
			fmt.Fprintf(&b, "| %s | %d | %d | %s |\n", cell(a.Name), a.Cost, a.Effectiveness, cell(a.Description))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeTrajectory(b *strings.Builder, t *simulator.Trajectory) {
	b.WriteString("## Spoilage Projection\n\n")
	fmt.Fprintf(b, "**%s** risk, %s lost after %d days. %s.\n\n", t.RiskLevel, percentValue(t.FinalSpoilagePercent), len(t.Days), strings.TrimSuffix(t.Recommendation, "!"))
	b.WriteString("| Day | Daily rate | Cumulative spoilage | Remaining quality |\n|---|---|---|---|\n")
	for _, d := range t.Days {
		fmt.Fprintf(b, "| %d | %s | %s | %s |\n", d.Day, percentValue(d.SpoilageRate), percentValue(d.CumulativeSpoilage), percentValue(d.RemainingQuality))
	}
	b.WriteString("\n### Contributing Factors\n\n")
	fmt.Fprintf(b, "- Temperature: %+.1f%%\n", t.Factors.TemperatureImpact)
	fmt.Fprintf(b, "- Humidity: %+.1f%%\n", t.Factors.HumidityImpact)
	fmt.Fprintf(b, "- Transit: %+.1f%%\n", t.Factors.TransitImpact)
	fmt.Fprintf(b, "- Weather: %+.1f%%\n\n", t.Factors.WeatherImpact)
	o := t.OptimalConditions
	fmt.Fprintf(b, "Optimal storage: %s, humidity %s, transit under %d hours.\n\n", o.SuggestedTemp, o.SuggestedHumidity, o.MaxTransitHours)
}

func row(b *strings.Builder, k, v string) {
	fmt.Fprintf(b, "| %s | %s |\n", k, cell(v))
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func percent(risk float64) string {
	return decimal.NewFromFloat(risk * 100).StringFixed(1) + "%"
}

func percentValue(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
