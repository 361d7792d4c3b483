package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/memcycle/internal/core"
	"github.com/newthinker/memcycle/internal/regime"
)

func predRow(date time.Time, glut, balanced, tight float64) regime.Prediction {
	probs := core.RegimeProbs{Glut: glut, Balanced: balanced, Tight: tight}
	return regime.Prediction{Date: date, Probs: probs, Predicted: probs.ArgMax()}
}

func obsRow(date time.Time, price float64) core.Observation {
	return core.Observation{Date: date, Utilization: 0.85, InventoryWeeks: 12, ContractPriceIndex: price}
}

func defaultSignalParams() SignalParams {
	return SignalParams{BuyThreshold: 0.6, SellThreshold: 0.6}
}

func TestSignalBacktest_ThresholdAssignment(t *testing.T) {
	d := time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC)
	obs := []core.Observation{
		obsRow(d, 100), obsRow(d.AddDate(0, 3, 0), 105),
		obsRow(d.AddDate(0, 6, 0), 102), obsRow(d.AddDate(0, 9, 0), 99),
	}
	preds := []regime.Prediction{
		predRow(d, 0.1, 0.2, 0.7),                  // long
		predRow(d.AddDate(0, 3, 0), 0.7, 0.2, 0.1), // short
		predRow(d.AddDate(0, 6, 0), 0.3, 0.4, 0.3), // hold
		predRow(d.AddDate(0, 9, 0), 0.1, 0.2, 0.7), // long
	}

	b := New(0.85, 12.0, 20)
	result, err := b.SignalBacktest(obs, preds, defaultSignalParams())
	if err != nil {
		t.Fatalf("SignalBacktest: %v", err)
	}

	want := []int{1, -1, 0, 1}
	for i, w := range want {
		if result.Signals[i] != w {
			t.Errorf("signal[%d] = %d, want %d", i, result.Signals[i], w)
		}
	}
	if result.Trades != 3 {
		t.Errorf("Trades = %d, want 3 transitions", result.Trades)
	}
}

func TestSignalBacktest_ShortOverridesLong(t *testing.T) {
	// Degenerate probabilities clearing both thresholds: the sell rule is
	// applied last and wins.
	d := time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC)
	obs := []core.Observation{obsRow(d, 100), obsRow(d.AddDate(0, 3, 0), 101)}
	preds := []regime.Prediction{
		predRow(d, 0.65, 0.0, 0.65),
		predRow(d.AddDate(0, 3, 0), 0.2, 0.6, 0.2),
	}

	b := New(0.85, 12.0, 20)
	result, err := b.SignalBacktest(obs, preds, defaultSignalParams())
	if err != nil {
		t.Fatalf("SignalBacktest: %v", err)
	}
	if result.Signals[0] != -1 {
		t.Errorf("signal = %d, want -1 when both thresholds met", result.Signals[0])
	}
}

func TestSignalBacktest_ShiftAvoidsLookahead(t *testing.T) {
	// Signal at row 0 must only affect the return realized from the move
	// between rows 1 and 2.
	d := time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC)
	obs := []core.Observation{
		obsRow(d, 100),
		obsRow(d.AddDate(0, 3, 0), 100), // flat move 0->1
		obsRow(d.AddDate(0, 6, 0), 110), // +10% move 1->2
		obsRow(d.AddDate(0, 9, 0), 110), // flat move 2->3
	}
	preds := []regime.Prediction{
		predRow(d, 0.1, 0.2, 0.7),                  // long at t=0
		predRow(d.AddDate(0, 3, 0), 0.3, 0.4, 0.3), // hold
		predRow(d.AddDate(0, 6, 0), 0.3, 0.4, 0.3), // hold
		predRow(d.AddDate(0, 9, 0), 0.3, 0.4, 0.3), // hold
	}

	b := New(0.85, 12.0, 20)
	result, err := b.SignalBacktest(obs, preds, defaultSignalParams())
	if err != nil {
		t.Fatalf("SignalBacktest: %v", err)
	}

	// Only the long decided at t=0 captures the +10% move at t=1.
	if math.Abs(result.TotalReturn-10.0) > 1e-9 {
		t.Errorf("TotalReturn = %f, want 10", result.TotalReturn)
	}
}

func TestSignalBacktest_MixedSignalsHandComputed(t *testing.T) {
	// Moves: +10%, -10%, +10%. The long decided at t=0 eats the -10% move
	// and the short decided at t=1 eats the +10% move, so the strategy
	// compounds 0.9 * 0.9 = -19% while buy-and-hold compounds
	// 1.1 * 0.9 * 1.1 = +8.9%.
	d := time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC)
	obs := []core.Observation{
		obsRow(d, 100), obsRow(d.AddDate(0, 3, 0), 110),
		obsRow(d.AddDate(0, 6, 0), 99), obsRow(d.AddDate(0, 9, 0), 108.9),
	}
	preds := []regime.Prediction{
		predRow(d, 0.1, 0.2, 0.7),                  // long
		predRow(d.AddDate(0, 3, 0), 0.7, 0.2, 0.1), // short
		predRow(d.AddDate(0, 6, 0), 0.3, 0.4, 0.3), // hold
		predRow(d.AddDate(0, 9, 0), 0.3, 0.4, 0.3), // hold
	}

	b := New(0.85, 12.0, 20)
	result, err := b.SignalBacktest(obs, preds, defaultSignalParams())
	if err != nil {
		t.Fatalf("SignalBacktest: %v", err)
	}

	if math.Abs(result.TotalReturn-(-19.0)) > 1e-9 {
		t.Errorf("TotalReturn = %f, want -19", result.TotalReturn)
	}
	if math.Abs(result.BuyHoldReturn-8.9) > 1e-9 {
		t.Errorf("BuyHoldReturn = %f, want 8.9", result.BuyHoldReturn)
	}
}

func TestSignalBacktest_BuyAndHoldBenchmark(t *testing.T) {
	d := time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC)
	obs := []core.Observation{
		obsRow(d, 100), obsRow(d.AddDate(0, 3, 0), 110),
		obsRow(d.AddDate(0, 6, 0), 121),
	}
	preds := []regime.Prediction{
		predRow(d, 0.3, 0.4, 0.3),
		predRow(d.AddDate(0, 3, 0), 0.3, 0.4, 0.3),
		predRow(d.AddDate(0, 6, 0), 0.3, 0.4, 0.3),
	}

	b := New(0.85, 12.0, 20)
	result, err := b.SignalBacktest(obs, preds, defaultSignalParams())
	if err != nil {
		t.Fatalf("SignalBacktest: %v", err)
	}

	// Buy-and-hold compounds both +10% moves: 21% total.
	if math.Abs(result.BuyHoldReturn-21.0) > 1e-9 {
		t.Errorf("BuyHoldReturn = %f, want 21", result.BuyHoldReturn)
	}
	// All-hold strategy earns nothing.
	if result.TotalReturn != 0 {
		t.Errorf("TotalReturn = %f, want 0 for all-hold", result.TotalReturn)
	}
	if result.BuyHoldMaxDrawdown != 0 {
		t.Errorf("BuyHoldMaxDrawdown = %f, want 0 for rising prices", result.BuyHoldMaxDrawdown)
	}
}

func TestSignalBacktest_Validation(t *testing.T) {
	b := New(0.85, 12.0, 20)

	if _, err := b.SignalBacktest(nil, nil, defaultSignalParams()); !errors.Is(err, core.ErrNoData) {
		t.Errorf("expected NO_DATA, got %v", err)
	}

	d := time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC)
	obs := []core.Observation{obsRow(d, 100)}
	preds := []regime.Prediction{
		predRow(d, 0.1, 0.2, 0.7),
		predRow(d.AddDate(0, 3, 0), 0.1, 0.2, 0.7),
	}
	if _, err := b.SignalBacktest(obs, preds, defaultSignalParams()); !errors.Is(err, core.ErrValidationFailed) {
		t.Errorf("expected VALIDATION_FAILED for misaligned inputs, got %v", err)
	}
}
