package engine

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
)

const (
	TransportCostPerQuintal = 0.5
	HarvestLookaheadDays    = 5

	HarvestImmediately = "Harvest immediately (bad weather ahead)"
	HarvestOneToTwo    = "Harvest in 1-2 days"
	HarvestTwoToThree  = "Harvest in 2-3 days"
	HarvestDefault     = "3-5 days"
)

// BestMarket returns the highest quote, earliest on ties. With no quotes it
// returns the placeholder mandi and a zero price.
func BestMarket(quotes []agri.MarketQuote) (string, float64) {
	if len(quotes) == 0 {
		return PlaceholderMandi, 0
	}
	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.Price > best.Price {
			best = q
		}
	}
	if best.MandiName == "" {
		return UnknownMandi, best.Price
	}
	return best.MandiName, best.Price
}

// TransportCost is a flat per-quintal proxy for an average haul.
func TransportCost(quantity float64) float64 {
	return quantity * TransportCostPerQuintal
}

// Profit is gross minus transport minus spoilage loss on the gross, rounded
// to paise and floored at zero.
func Profit(price, quantity, transport, risk float64) float64 {
	gross := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity))
	loss := gross.Mul(decimal.NewFromFloat(risk))
	net := gross.Sub(decimal.NewFromFloat(transport)).Sub(loss).Round(2)
	if net.IsNegative() {
		return 0
	}
	v, _ := net.Float64()
	return v
}

// HarvestWindow counts bad days (humidity > 75 or rainfall > 15) in the next
// five forecast days. Without a forecast the default window applies.
func HarvestWindow(weather []agri.WeatherDay, risk float64) string {
	if len(weather) == 0 {
		return HarvestDefault
	}
	bad := 0
	for i, day := range weather {
		if i == HarvestLookaheadDays {
			break
		}
		if agri.Or(day.Humidity, 0) > 75 || agri.Or(day.Rainfall, 0) > 15 {
			bad++
		}
	}
	switch {
	case bad >= 3:
		return HarvestImmediately
	case bad >= 2:
		return HarvestOneToTwo
	case risk > 0.5:
		return HarvestTwoToThree
	default:
		return HarvestDefault
	}
}

// Explain bands risk at 0.4 and 0.25, which are not the heuristics.RiskLevel
// thresholds.
func Explain(priceSource, spoilageSource string, risk float64) string {
	pct := int(math.Trunc(risk * 100))
	text := fmt.Sprintf("Based on %s and %s. ", priceSource, spoilageSource)
	switch {
	case risk > 0.4:
		return text + fmt.Sprintf("High spoilage risk (%d%%) due to weather conditions. Consider immediate harvest and fast transport.", pct)
	case risk > 0.25:
		return text + fmt.Sprintf("Moderate spoilage risk (%d%%). Recommend harvesting within recommended window.", pct)
	default:
		return text + fmt.Sprintf("Low spoilage risk (%d%%). Good conditions for storage and transport.", pct)
	}
}
