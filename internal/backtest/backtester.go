package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/memcycle/internal/core"
	"github.com/newthinker/memcycle/internal/feature"
	"github.com/newthinker/memcycle/internal/regime"
)

// directionThreshold is the probability cutoff for calling a price
// direction from regime probabilities. Independent of the signal
// buy/sell thresholds.
const directionThreshold = 0.5

// Backtester validates the regime model out of sample: it fits a fresh
// model on the training slice and scores predictions strictly after the
// test start date.
type Backtester struct {
	uStar           float64
	iStar           float64
	minTrainPeriods int
}

// New creates a Backtester with the given equilibrium parameters and
// minimum training length.
func New(uStar, iStar float64, minTrainPeriods int) *Backtester {
	return &Backtester{
		uStar:           uStar,
		iStar:           iStar,
		minTrainPeriods: minTrainPeriods,
	}
}

// Run performs an expanding-window backtest. Observations must be in
// ascending date order. The training slice covers [trainStart, testStart)
// and the test slice [testStart, end]. Ground-truth labels, when supplied,
// are restricted to training dates for fitting and to test dates for
// accuracy scoring.
func (b *Backtester) Run(obs []core.Observation, truth []core.RegimeLabel, trainStart, testStart time.Time) (*Result, error) {
	var train, test []core.Observation
	for _, o := range obs {
		switch {
		case o.Date.Before(trainStart):
		case o.Date.Before(testStart):
			train = append(train, o)
		default:
			test = append(test, o)
		}
	}

	if len(train) < b.minTrainPeriods {
		return nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("training periods %d < minimum %d", len(train), b.minTrainPeriods))
	}
	if len(test) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no observations on or after test start %s", testStart.Format("2006-01-02")))
	}

	var trainTruth []core.RegimeLabel
	for _, l := range truth {
		if !l.Date.Before(trainStart) && l.Date.Before(testStart) {
			trainTruth = append(trainTruth, l)
		}
	}

	model := regime.New(b.uStar, b.iStar)
	if err := model.Fit(train, trainTruth); err != nil {
		return nil, err
	}

	preds, err := model.Predict(test)
	if err != nil {
		return nil, err
	}

	return &Result{
		TrainStart:   train[0].Date,
		TrainEnd:     train[len(train)-1].Date,
		TestStart:    test[0].Date,
		TestEnd:      test[len(test)-1].Date,
		TrainPeriods: len(train),
		TestPeriods:  len(test),
		Predictions:  preds,
		Metrics:      calculateMetrics(test, preds, truth),
	}, nil
}

// calculateMetrics scores predictions against ground truth and price moves
// over the test slice.
func calculateMetrics(test []core.Observation, preds []regime.Prediction, truth []core.RegimeLabel) Metrics {
	var m Metrics

	if len(truth) > 0 {
		truthByDate := make(map[time.Time]core.Regime, len(truth))
		for _, l := range truth {
			truthByDate[l.Date] = l.Regime
		}

		var matched, correct int
		var perRegimeTotal, perRegimeCorrect [core.NumRegimes]int
		for _, p := range preds {
			actual, ok := truthByDate[p.Date]
			if !ok {
				continue
			}
			matched++
			perRegimeTotal[actual]++
			if p.Predicted == actual {
				correct++
				perRegimeCorrect[actual]++
			}
		}

		if matched > 0 {
			m.RegimeAccuracy = ratio(correct, matched)
			if perRegimeTotal[core.RegimeGlut] > 0 {
				m.AccuracyGlut = ratio(perRegimeCorrect[core.RegimeGlut], perRegimeTotal[core.RegimeGlut])
			}
			if perRegimeTotal[core.RegimeBalanced] > 0 {
				m.AccuracyBalanced = ratio(perRegimeCorrect[core.RegimeBalanced], perRegimeTotal[core.RegimeBalanced])
			}
			if perRegimeTotal[core.RegimeTight] > 0 {
				m.AccuracyTight = ratio(perRegimeCorrect[core.RegimeTight], perRegimeTotal[core.RegimeTight])
			}
		}
	}

	prices := make([]float64, len(test))
	for i, o := range test {
		prices[i] = o.ContractPriceIndex
	}
	changes := feature.PercentChanges(prices)

	// Direction: a non-neutral prediction at t is scored against the sign
	// of the next period's price change.
	var nonNeutral, correctDir int
	for t, p := range preds {
		dir := predictedDirection(p.Probs)
		if dir == 0 || t >= len(changes) {
			continue
		}
		nonNeutral++
		if dir == sign(changes[t]) {
			correctDir++
		}
	}
	if nonNeutral > 0 {
		m.DirectionAccuracy = ratio(correctDir, nonNeutral)
	}

	// RMSE of percent changes around their own mean: a volatility
	// estimate of the test slice, not a forecast error.
	if len(changes) > 0 {
		var sum float64
		for _, c := range changes {
			sum += c
		}
		mean := sum / float64(len(changes))
		var sq float64
		for _, c := range changes {
			sq += (c - mean) * (c - mean)
		}
		rmse := math.Sqrt(sq / float64(len(changes)))
		m.PriceRMSE = &rmse
	}

	return m
}

func predictedDirection(p core.RegimeProbs) int {
	if p.Tight > directionThreshold {
		return 1
	}
	if p.Glut > directionThreshold {
		return -1
	}
	return 0
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func ratio(num, den int) *float64 {
	r := float64(num) / float64(den)
	return &r
}
