package alerting

import (
	"fmt"

	"price-frame-monitor/internal/analysis"
)

// Decide reports whether summary should be notified under thresholds.
func Decide(summary analysis.Summary, thresholds Thresholds) bool {
	notify, _ := Evaluate(summary, thresholds)
	return notify
}

// Evaluate applies every configured filter and returns the decision together
// with the reasons for suppression. Filters can only suppress.
func Evaluate(summary analysis.Summary, thresholds Thresholds) (bool, []string) {
	var reasons []string

	if limit, ok := thresholds.ChangePct(); ok && summary.PriceChangePct < limit {
		reasons = append(reasons, fmt.Sprintf("price change %s%% below %g%%", analysis.Fixed(summary.PriceChangePct, 2), limit))
	}
	if limit, ok := thresholds.VolatilityPct(); ok && summary.AvgVolatilityPct < limit {
		reasons = append(reasons, fmt.Sprintf("volatility %s%% below %g%%", analysis.Fixed(summary.AvgVolatilityPct, 2), limit))
	}

	switch thresholds.Direction() {
	case DirectionUp:
		if summary.ClosingPrice <= summary.OpeningPrice {
			reasons = append(reasons, "price did not rise")
		}
	case DirectionDown:
		if summary.ClosingPrice >= summary.OpeningPrice {
			reasons = append(reasons, "price did not fall")
		}
	}

	return len(reasons) == 0, reasons
}
