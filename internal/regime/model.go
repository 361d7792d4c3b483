package regime

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/newthinker/memcycle/internal/core"
	"github.com/newthinker/memcycle/internal/feature"
)

// Scoring constants for the continuous probability heuristic. Gaps are
// normalized by the typical range of each indicator.
const (
	utilScale      = 0.15
	invScale       = 8.0
	momentumWeight = 0.5
)

// minRegimeSamples is the minimum number of labeled feature rows a regime
// needs before its regression is fitted. Regimes below the threshold are
// skipped, not an error; forecasts for them fall back to a neutral default.
const minRegimeSamples = 5

// momentumLookback is the number of periods for price momentum in bulk
// prediction.
const momentumLookback = 3

// defaultVolatility is returned when forecasting a regime that has no
// fitted regression.
const defaultVolatility = 0.1

// Model is a regime-switching model of the memory market: a rule-based
// historical classifier, independent per-regime return regressions and an
// empirical transition matrix, fitted together from one call to Fit.
//
// A Model is not safe for concurrent use while Fit is running; fit once,
// then treat it as read-only.
type Model struct {
	uStar float64 // equilibrium utilization
	iStar float64 // equilibrium inventory weeks

	fitted      bool
	models      [core.NumRegimes]*regression
	vols        [core.NumRegimes]float64
	transitions TransitionMatrix

	// Retained fit inputs, for introspection only.
	features []feature.Row
	labels   []core.Regime
}

// New creates an unfitted model with the given equilibrium parameters.
func New(uStar, iStar float64) *Model {
	return &Model{uStar: uStar, iStar: iStar}
}

// UStar returns the equilibrium utilization rate.
func (m *Model) UStar() float64 { return m.uStar }

// IStar returns the equilibrium inventory weeks.
func (m *Model) IStar() float64 { return m.iStar }

// Fitted reports whether Fit has completed.
func (m *Model) Fitted() bool { return m.fitted }

// Fit computes the feature table from the observations, labels each feature
// row (ground truth when provided, threshold rule otherwise), fits one
// regression per regime with at least minRegimeSamples rows, and estimates
// the transition matrix from the label sequence.
//
// Observations must be in ascending date order with unique dates.
func (m *Model) Fit(obs []core.Observation, truth []core.RegimeLabel) error {
	features := feature.Compute(obs, m.uStar, m.iStar)
	if len(features) == 0 {
		return core.WrapError(core.ErrNoData,
			fmt.Errorf("no usable feature rows from %d observations", len(obs)))
	}

	var labeled []core.Regime // aligned with features, or with truth sequence
	var byRegime [core.NumRegimes][]feature.Row

	if truth == nil {
		obsByDate := make(map[time.Time]core.Observation, len(obs))
		for _, o := range obs {
			obsByDate[o.Date] = o
		}
		labeled = make([]core.Regime, len(features))
		for i, f := range features {
			o := obsByDate[f.Date]
			r := Classify(o.Utilization, o.InventoryWeeks)
			labeled[i] = r
			byRegime[r] = append(byRegime[r], f)
		}
	} else {
		sorted := make([]core.RegimeLabel, len(truth))
		copy(sorted, truth)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

		labelByDate := make(map[time.Time]core.Regime, len(sorted))
		labeled = make([]core.Regime, 0, len(sorted))
		for _, l := range sorted {
			labelByDate[l.Date] = l.Regime
			labeled = append(labeled, l.Regime)
		}
		for _, f := range features {
			if r, ok := labelByDate[f.Date]; ok {
				byRegime[r] = append(byRegime[r], f)
			}
		}
	}

	var models [core.NumRegimes]*regression
	var vols [core.NumRegimes]float64
	for _, r := range core.Regimes {
		rows := byRegime[r]
		if len(rows) < minRegimeSamples {
			continue
		}
		reg, vol := fitOLS(rows)
		regCopy := reg
		models[r] = &regCopy
		vols[r] = vol
	}

	m.models = models
	m.vols = vols
	m.transitions = estimateTransitions(labeled)
	m.features = features
	m.labels = labeled
	m.fitted = true
	return nil
}

// Probabilities scores a market state into regime probabilities using the
// softmax heuristic. This is a pure function of the equilibrium parameters
// and does not depend on the fitted regressions or transition matrix.
func (m *Model) Probabilities(utilization, inventory, momentum float64) core.RegimeProbs {
	utilGap := utilization - m.uStar
	invGap := m.iStar - inventory

	tightScore := utilGap/utilScale + invGap/invScale + momentumWeight*momentum
	glutScore := -utilGap/utilScale - invGap/invScale - momentumWeight*momentum

	// Softmax over [glut, balanced, tight]; balanced is the neutral zero
	// score. Subtract the max for numerical stability.
	scores := [core.NumRegimes]float64{glutScore, 0, tightScore}
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	var exp [core.NumRegimes]float64
	var sum float64
	for i, s := range scores {
		exp[i] = math.Exp(s - maxScore)
		sum += exp[i]
	}
	return core.RegimeProbs{
		Glut:     exp[core.RegimeGlut] / sum,
		Balanced: exp[core.RegimeBalanced] / sum,
		Tight:    exp[core.RegimeTight] / sum,
	}
}

// Prediction is one row of bulk regime prediction output.
type Prediction struct {
	Date      time.Time
	Probs     core.RegimeProbs
	Predicted core.Regime
}

// Predict scores every observation. Momentum per row is the 3-period
// percent change of the contract price up to and including that row, zero
// when fewer than 4 rows of history exist.
func (m *Model) Predict(obs []core.Observation) ([]Prediction, error) {
	if !m.fitted {
		return nil, core.ErrNotFitted
	}

	prices := make([]float64, len(obs))
	for i, o := range obs {
		prices[i] = o.ContractPriceIndex
	}

	preds := make([]Prediction, len(obs))
	for i, o := range obs {
		momentum := feature.Momentum(prices, i, momentumLookback)
		probs := m.Probabilities(o.Utilization, o.InventoryWeeks, momentum)
		preds[i] = Prediction{
			Date:      o.Date,
			Probs:     probs,
			Predicted: probs.ArgMax(),
		}
	}
	return preds, nil
}

// ForecastRegimeReturn forecasts next-period log price return and
// volatility using one specific regime's regression. Regimes without a
// fitted regression return the documented neutral default (0, 0.1).
func (m *Model) ForecastRegimeReturn(utilization, inventory, hbmShareDelta float64, r core.Regime) (float64, float64, error) {
	if !m.fitted {
		return 0, 0, core.ErrNotFitted
	}
	reg := m.models[r]
	if reg == nil {
		return 0, defaultVolatility, nil
	}
	x := [3]float64{utilization - m.uStar, m.iStar - inventory, hbmShareDelta}
	return reg.predict(x), m.vols[r], nil
}

// ForecastReturn forecasts next-period log price return and volatility as
// the probability-weighted sum across fitted regimes. Regimes without a
// regression contribute no mass and the remaining weights are not
// renormalized, so the result is deliberately not a convex combination
// when a regime's model is missing.
func (m *Model) ForecastReturn(utilization, inventory, hbmShareDelta float64) (float64, float64, error) {
	if !m.fitted {
		return 0, 0, core.ErrNotFitted
	}

	probs := m.Probabilities(utilization, inventory, 0)
	x := [3]float64{utilization - m.uStar, m.iStar - inventory, hbmShareDelta}

	var expectedReturn, volatility float64
	for _, r := range core.Regimes {
		reg := m.models[r]
		if reg == nil {
			continue
		}
		p := probs.Get(r)
		expectedReturn += p * reg.predict(x)
		volatility += p * m.vols[r]
	}
	return expectedReturn, volatility, nil
}

// Transitions returns the fitted transition matrix.
func (m *Model) Transitions() (TransitionMatrix, error) {
	if !m.fitted {
		return TransitionMatrix{}, core.ErrNotFitted
	}
	return m.transitions, nil
}

// HasRegimeModel reports whether a regression was fitted for the regime.
func (m *Model) HasRegimeModel(r core.Regime) bool {
	return m.models[r] != nil
}

// Features returns the feature table retained from the last Fit.
func (m *Model) Features() []feature.Row { return m.features }

// Labels returns the label sequence used by the last Fit.
func (m *Model) Labels() []core.Regime { return m.labels }
