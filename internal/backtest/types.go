package backtest

import (
	"time"

	"github.com/newthinker/memcycle/internal/regime"
)

// Result holds the complete expanding-window backtest output.
type Result struct {
	TrainStart   time.Time
	TrainEnd     time.Time
	TestStart    time.Time
	TestEnd      time.Time
	TrainPeriods int
	TestPeriods  int
	Predictions  []regime.Prediction
	Metrics      Metrics
}

// Metrics holds regime-detection and price metrics over the test slice.
// Accuracy fields are nil when the data needed to compute them is absent
// (no ground-truth overlap, no rows of that regime, no non-neutral
// predictions).
type Metrics struct {
	RegimeAccuracy    *float64 `json:"regime_accuracy,omitempty"`
	AccuracyGlut      *float64 `json:"accuracy_glut,omitempty"`
	AccuracyBalanced  *float64 `json:"accuracy_balanced,omitempty"`
	AccuracyTight     *float64 `json:"accuracy_tight,omitempty"`
	DirectionAccuracy *float64 `json:"direction_accuracy,omitempty"`
	PriceRMSE         *float64 `json:"price_rmse,omitempty"`
}

// SignalParams configures the signal backtest thresholds.
type SignalParams struct {
	BuyThreshold   float64
	SellThreshold  float64
	AnnualRiskFree float64
}

// SignalResult compares the threshold signal strategy against
// unconditional buy-and-hold over the test slice.
type SignalResult struct {
	Signals []int `json:"signals"` // per test row: +1 long, -1 short, 0 hold

	TotalReturn   float64 `json:"total_return"`    // percent
	BuyHoldReturn float64 `json:"buy_hold_return"` // percent

	SharpeRatio   float64 `json:"sharpe_ratio"`
	BuyHoldSharpe float64 `json:"buy_hold_sharpe"`

	MaxDrawdown        float64 `json:"max_drawdown"`          // percent, peak to trough
	BuyHoldMaxDrawdown float64 `json:"buy_hold_max_drawdown"` // percent

	Trades int `json:"trades"` // signal transitions; opening and flipping both count once
}
