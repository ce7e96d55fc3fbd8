package alerts

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/quantfolio/riskd/internal/risk"
)

// RuleConfig holds the thresholds the report rules fire on.
type RuleConfig struct {
	VaRCapitalFraction float64 // diversified VaR share of capital that is critical
	StressLossFraction float64 // worst stress loss share of capital that is critical
}

// DefaultRuleConfig returns the thresholds used when none are configured.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		VaRCapitalFraction: 0.10,
		StressLossFraction: 0.25,
	}
}

// EvaluateReport runs the alert rules over a computed report. Channel
// failures surface through the manager's logging; evaluation itself
// never fails.
func (m *Manager) EvaluateReport(ctx context.Context, report *risk.Report, rules RuleConfig) {
	if report == nil {
		return
	}

	basket := strings.Join(report.Assets, ", ")

	if report.Error != "" {
		_ = m.SendWarning(ctx, "Degraded Risk Report", fmt.Sprintf(
			"Report for %s completed degraded: %s", basket, report.Error,
		), map[string]interface{}{
			"tickers": basket,
			"error":   report.Error,
		})
		// Degraded figures are zeroed, no threshold below can fire
		return
	}

	capital := parseAmount(report.Capital)

	if capital > 0 && rules.VaRCapitalFraction > 0 {
		varAmount := parseAmount(report.VaR.Diversified)
		if varAmount > rules.VaRCapitalFraction*capital {
			_ = m.SendCritical(ctx, "Portfolio VaR Breach", fmt.Sprintf(
				"Diversified VaR %.2f exceeds %.0f%% of capital %.2f",
				varAmount, rules.VaRCapitalFraction*100, capital,
			), map[string]interface{}{
				"var":        varAmount,
				"capital":    capital,
				"limit":      rules.VaRCapitalFraction,
				"confidence": report.Confidence,
			})
		}
	}

	if pairs := report.Correlation.NearDuplicates; len(pairs) > 0 {
		described := make([]string, 0, len(pairs))
		for _, pair := range pairs {
			described = append(described, fmt.Sprintf("%s/%s (%.3f)", pair.TickerA, pair.TickerB, pair.Correlation))
		}
		_ = m.SendWarning(ctx, "Near-Duplicate Holdings", fmt.Sprintf(
			"Correlation scan flagged %d pair(s): %s", len(pairs), strings.Join(described, ", "),
		), map[string]interface{}{
			"tickers": basket,
			"pairs":   strings.Join(described, ", "),
		})
	}

	if len(report.Warnings) > 0 {
		_ = m.SendInfo(ctx, "Report Data Quality", fmt.Sprintf(
			"Report for %s carries %d warning(s): %s",
			basket, len(report.Warnings), strings.Join(report.Warnings, "; "),
		), map[string]interface{}{
			"tickers":  basket,
			"warnings": len(report.Warnings),
		})
	}

	if capital > 0 && rules.StressLossFraction > 0 {
		// Scenario losses are negative amounts; the worst is the most negative.
		worstName := ""
		worstLoss := 0.0
		for _, result := range report.Stress {
			if loss := parseAmount(result.PortfolioLoss); loss < worstLoss {
				worstName = result.Name
				worstLoss = loss
			}
		}
		if magnitude := -worstLoss; magnitude > rules.StressLossFraction*capital {
			_ = m.SendCritical(ctx, "Stress Loss Threshold", fmt.Sprintf(
				"Scenario %q loses %.2f, beyond %.0f%% of capital %.2f",
				worstName, magnitude, rules.StressLossFraction*100, capital,
			), map[string]interface{}{
				"scenario": worstName,
				"loss":     magnitude,
				"capital":  capital,
				"limit":    rules.StressLossFraction,
			})
		}
	}
}

// parseAmount reads one of the report's fixed-point strings. Malformed
// values read as zero, which disarms every threshold rule.
func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
