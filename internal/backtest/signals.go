package backtest

import (
	"fmt"

	"github.com/newthinker/memcycle/internal/core"
	"github.com/newthinker/memcycle/internal/feature"
	"github.com/newthinker/memcycle/internal/regime"
)

// SignalBacktest scores a threshold trading strategy over bulk
// predictions: long when prob(tight) exceeds the buy threshold, short when
// prob(glut) exceeds the sell threshold, hold otherwise. When both
// thresholds are met in the same row, short wins (the sell rule is applied
// last and overrides).
//
// The signal decided at row t is applied to the price move from t+1 to
// t+2: strategy return[t] = priceChange[t+1] * signal[t-1]. This one-ahead,
// one-lagged shift avoids lookahead bias and must not be altered.
func (b *Backtester) SignalBacktest(obs []core.Observation, preds []regime.Prediction, p SignalParams) (*SignalResult, error) {
	if len(preds) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no predictions to backtest"))
	}
	if len(obs) != len(preds) {
		return nil, core.WrapError(core.ErrValidationFailed,
			fmt.Errorf("observations (%d) and predictions (%d) must align", len(obs), len(preds)))
	}

	n := len(preds)
	signals := make([]int, n)
	for i, pred := range preds {
		if pred.Probs.Tight > p.BuyThreshold {
			signals[i] = 1
		}
		if pred.Probs.Glut > p.SellThreshold {
			signals[i] = -1
		}
	}

	prices := make([]float64, n)
	for i, o := range obs {
		prices[i] = o.ContractPriceIndex
	}
	changes := feature.PercentChanges(prices) // changes[t] = move from t to t+1

	// Full-length return series with zeros where the shift leaves a
	// return undefined (first and last rows).
	stratReturns := make([]float64, n)
	bhReturns := make([]float64, n)
	for t := 0; t < len(changes); t++ {
		bhReturns[t] = changes[t] // next-period move, held unconditionally
	}
	for t := 1; t < len(changes); t++ {
		stratReturns[t] = changes[t] * float64(signals[t-1])
	}

	stratCurve := CumulativeCurve(stratReturns)
	bhCurve := CumulativeCurve(bhReturns)

	// Sharpe over the defined returns only (undefined shift rows excluded).
	var stratDefined, bhDefined []float64
	for t := 1; t < len(changes); t++ {
		stratDefined = append(stratDefined, stratReturns[t])
	}
	for t := 0; t < len(changes); t++ {
		bhDefined = append(bhDefined, bhReturns[t])
	}

	trades := 0
	for t := 1; t < n; t++ {
		if signals[t] != signals[t-1] {
			trades++
		}
	}

	return &SignalResult{
		Signals:            signals,
		TotalReturn:        (stratCurve[len(stratCurve)-1] - 1) * 100,
		BuyHoldReturn:      (bhCurve[len(bhCurve)-1] - 1) * 100,
		SharpeRatio:        SharpeRatio(stratDefined, p.AnnualRiskFree),
		BuyHoldSharpe:      SharpeRatio(bhDefined, p.AnnualRiskFree),
		MaxDrawdown:        MaxDrawdown(stratCurve),
		BuyHoldMaxDrawdown: MaxDrawdown(bhCurve),
		Trades:             trades,
	}, nil
}
