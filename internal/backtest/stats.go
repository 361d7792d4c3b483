package backtest

import (
	"math"
)

// quartersPerYear annualizes quarterly return statistics.
const quartersPerYear = 4

// SharpeRatio computes the annualized Sharpe ratio of a quarterly return
// series. The annual risk-free rate is applied per quarter; annualization
// multiplies by sqrt(4). Returns 0 when the return deviation is zero.
func SharpeRatio(returns []float64, annualRiskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	rf := annualRiskFree / quartersPerYear
	var sum float64
	for _, r := range returns {
		sum += r - rf
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := (r - rf) - mean
		variance += d * d
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(quartersPerYear)
}

// MaxDrawdown finds the largest peak-to-trough decline of a cumulative
// return curve, as a positive percentage. A monotonically increasing
// curve has a drawdown of exactly 0.
func MaxDrawdown(curve []float64) float64 {
	var maxDD float64
	var peak float64

	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

// CumulativeCurve compounds a return series into a cumulative product of
// (1 + return), starting the curve at the first period's value.
func CumulativeCurve(returns []float64) []float64 {
	curve := make([]float64, len(returns))
	cumulative := 1.0
	for i, r := range returns {
		cumulative *= 1 + r
		curve[i] = cumulative
	}
	return curve
}
