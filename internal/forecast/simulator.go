package forecast

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/newthinker/memcycle/internal/core"
	"github.com/newthinker/memcycle/internal/regime"
)

// State bounds for the simplified utilization/inventory dynamics.
const (
	utilFloor = 0.6
	utilCeil  = 0.95
	invFloor  = 3.0
	invCeil   = 30.0
)

// Params configures one simulation run.
type Params struct {
	InitialPrice       float64 `json:"initial_price"`
	InitialUtilization float64 `json:"initial_utilization"`
	InitialInventory   float64 `json:"initial_inventory"`
	Horizon            int     `json:"horizon"`       // quarterly steps to simulate
	Simulations        int     `json:"simulations"`   // number of independent paths
	DemandGrowth       float64 `json:"demand_growth"` // utilization drift per step
	Seed               int64   `json:"seed"`          // RNG seed, for reproducible runs
}

// Point is the price distribution across paths at one horizon step.
// Step 0 is the initial price with zero dispersion.
type Point struct {
	Horizon int     `json:"horizon"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	P10     float64 `json:"p10"`
	P25     float64 `json:"p25"`
	P75     float64 `json:"p75"`
	P90     float64 `json:"p90"`
}

// Simulator forward-simulates price paths under regime uncertainty using
// the fitted model's probability-weighted return forecast plus Gaussian
// shocks.
type Simulator struct {
	model *regime.Model
}

// New creates a Simulator over a fitted model.
func New(model *regime.Model) *Simulator {
	return &Simulator{model: model}
}

// Run simulates Params.Simulations independent paths over Params.Horizon
// steps and aggregates price percentiles per step. Prices update
// multiplicatively in log space and therefore stay strictly positive.
func (s *Simulator) Run(p Params) ([]Point, error) {
	if !s.model.Fitted() {
		return nil, core.ErrNotFitted
	}
	if p.Horizon < 1 || p.Simulations < 1 {
		return nil, core.WrapError(core.ErrValidationFailed,
			fmt.Errorf("horizon (%d) and simulations (%d) must be positive", p.Horizon, p.Simulations))
	}
	if p.InitialPrice <= 0 {
		return nil, core.WrapError(core.ErrValidationFailed,
			fmt.Errorf("initial price must be positive, got %f", p.InitialPrice))
	}

	rng := rand.New(rand.NewSource(p.Seed))
	uStar, iStar := s.model.UStar(), s.model.IStar()

	// paths[sim][h]: price at horizon step h for one path.
	paths := make([][]float64, p.Simulations)
	for sim := range paths {
		path := make([]float64, p.Horizon+1)
		path[0] = p.InitialPrice

		price := p.InitialPrice
		util := p.InitialUtilization
		inv := p.InitialInventory

		for h := 0; h < p.Horizon; h++ {
			expectedReturn, volatility, err := s.model.ForecastReturn(util, inv, 0)
			if err != nil {
				return nil, err
			}

			shock := rng.NormFloat64() * volatility
			price *= math.Exp(expectedReturn + shock)
			path[h+1] = price

			// Utilization updates from the pre-update inventory, then
			// inventory from the just-updated utilization. Order matters.
			util = clip(util+p.DemandGrowth-0.01*(inv-iStar), utilFloor, utilCeil)
			inv = clip(inv-0.5*(util-uStar), invFloor, invCeil)
		}
		paths[sim] = path
	}

	points := make([]Point, p.Horizon+1)
	column := make([]float64, p.Simulations)
	for h := 0; h <= p.Horizon; h++ {
		for sim := range paths {
			column[sim] = paths[sim][h]
		}
		points[h] = Point{
			Horizon: h,
			Mean:    mean(column),
			Median:  percentile(column, 50),
			P10:     percentile(column, 10),
			P25:     percentile(column, 25),
			P75:     percentile(column, 75),
			P90:     percentile(column, 90),
		}
	}
	return points, nil
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile computes the p-th percentile with linear interpolation
// between closest ranks. The input slice is not modified.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
