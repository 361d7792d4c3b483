package core

import (
	"fmt"
	"time"
)

// Regime is a categorical market state describing the supply/demand balance
// of the memory market. Indices are stable (glut=0, balanced=1, tight=2) and
// used as row/column order for the transition matrix.
type Regime int

const (
	RegimeGlut Regime = iota
	RegimeBalanced
	RegimeTight
)

// NumRegimes is the number of market regimes.
const NumRegimes = 3

// Regimes lists all regimes in index order.
var Regimes = [NumRegimes]Regime{RegimeGlut, RegimeBalanced, RegimeTight}

func (r Regime) String() string {
	switch r {
	case RegimeGlut:
		return "glut"
	case RegimeBalanced:
		return "balanced"
	case RegimeTight:
		return "tight"
	default:
		return fmt.Sprintf("regime(%d)", int(r))
	}
}

// ParseRegime converts a string label to a Regime.
func ParseRegime(s string) (Regime, error) {
	switch s {
	case "glut":
		return RegimeGlut, nil
	case "balanced":
		return RegimeBalanced, nil
	case "tight":
		return RegimeTight, nil
	default:
		return 0, WrapError(ErrValidationFailed, fmt.Errorf("unknown regime %q", s))
	}
}

// Observation is one quarter of market data, keyed by date. Utilization,
// InventoryWeeks and ContractPriceIndex are required; the remaining series
// are optional and nil when absent.
type Observation struct {
	Date               time.Time
	Utilization        float64 // fab utilization rate, [0, 1]
	InventoryWeeks     float64 // weeks of supplier inventory
	ContractPriceIndex float64 // DRAM contract price index, drives the model

	SpotIndex         *float64
	HBMASPUSDPerGB    *float64
	CapexBnUSD        *float64
	HBMRevenueShare   *float64
	NvidiaDCRevBnUSD  *float64
	DRAMRevenueBnUSD  *float64
}

// IsValid checks that the required fields are populated and in range.
func (o Observation) IsValid() bool {
	return !o.Date.IsZero() &&
		o.Utilization >= 0 && o.Utilization <= 1 &&
		o.InventoryWeeks >= 0 &&
		o.ContractPriceIndex > 0
}

// RegimeLabel is an externally supplied ground-truth regime for one quarter.
type RegimeLabel struct {
	Date       time.Time
	Regime     Regime
	Confidence float64
	Notes      string
}

// RegimeProbs holds the probability of each regime for a market state.
// The three fields sum to 1.
type RegimeProbs struct {
	Glut     float64
	Balanced float64
	Tight    float64
}

// Get returns the probability for a regime.
func (p RegimeProbs) Get(r Regime) float64 {
	switch r {
	case RegimeGlut:
		return p.Glut
	case RegimeBalanced:
		return p.Balanced
	case RegimeTight:
		return p.Tight
	default:
		return 0
	}
}

// ArgMax returns the most probable regime. Ties resolve to the
// first-listed regime in index order (glut, balanced, tight).
func (p RegimeProbs) ArgMax() Regime {
	best := RegimeGlut
	for _, r := range Regimes[1:] {
		if p.Get(r) > p.Get(best) {
			best = r
		}
	}
	return best
}

// Action is a trading signal action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal is an ephemeral trading recommendation derived from regime
// probabilities, price momentum and inventory trend. It carries no
// persisted identity and is recomputed on demand.
type Signal struct {
	Action       Action
	Confidence   float64 // [0, 1]
	PositionSize float64 // suggested fraction of portfolio, [0, 1]
	Reason       string
	GeneratedAt  time.Time
}
