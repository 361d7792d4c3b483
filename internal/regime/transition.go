package regime

import "github.com/newthinker/memcycle/internal/core"

// TransitionMatrix holds first-order Markov transition probabilities
// between regimes, indexed [from][to] in regime index order. It is a
// read-only fitted artifact for inspection and reporting; the forecast
// path does not consume it.
type TransitionMatrix [core.NumRegimes][core.NumRegimes]float64

// Prob returns the probability of moving from one regime to another.
func (m TransitionMatrix) Prob(from, to core.Regime) float64 {
	return m[from][to]
}

// estimateTransitions counts consecutive-pair transitions in the label
// sequence and row-normalizes. Rows with no observed transitions default
// to uniform probability.
func estimateTransitions(labels []core.Regime) TransitionMatrix {
	var counts [core.NumRegimes][core.NumRegimes]float64
	for i := 0; i+1 < len(labels); i++ {
		counts[labels[i]][labels[i+1]]++
	}

	var m TransitionMatrix
	for i := 0; i < core.NumRegimes; i++ {
		var rowSum float64
		for j := 0; j < core.NumRegimes; j++ {
			rowSum += counts[i][j]
		}
		for j := 0; j < core.NumRegimes; j++ {
			if rowSum > 0 {
				m[i][j] = counts[i][j] / rowSum
			} else {
				m[i][j] = 1.0 / core.NumRegimes
			}
		}
	}
	return m
}
