package feature

import (
	"math"
	"time"

	"github.com/newthinker/memcycle/internal/core"
)

// Row is one quarter of derived model features, aligned to the observation
// date it was computed from.
type Row struct {
	Date           time.Time
	UtilGap        float64 // utilization - u_star
	InvGap         float64 // i_star - inventory (rising inventory = negative gap)
	PriceLog       float64
	PriceLogReturn float64
	HBMShareDelta  float64
}

// Vector returns the regression inputs in model order.
func (r Row) Vector() [3]float64 {
	return [3]float64{r.UtilGap, r.InvGap, r.HBMShareDelta}
}

// Compute derives the feature table from observations in ascending date
// order. Rows with an undefined feature are dropped: the first row always
// (log return needs a prior price), and any row where the HBM share series
// is in use but missing on either side of the difference.
func Compute(obs []core.Observation, uStar, iStar float64) []Row {
	if len(obs) < 2 {
		return nil
	}

	hbmInUse := false
	for _, o := range obs {
		if o.HBMRevenueShare != nil {
			hbmInUse = true
			break
		}
	}

	rows := make([]Row, 0, len(obs)-1)
	for i := 1; i < len(obs); i++ {
		cur, prev := obs[i], obs[i-1]

		hbmDelta := 0.0
		if hbmInUse {
			if cur.HBMRevenueShare == nil || prev.HBMRevenueShare == nil {
				continue
			}
			hbmDelta = *cur.HBMRevenueShare - *prev.HBMRevenueShare
		}

		rows = append(rows, Row{
			Date:           cur.Date,
			UtilGap:        cur.Utilization - uStar,
			InvGap:         iStar - cur.InventoryWeeks,
			PriceLog:       math.Log(cur.ContractPriceIndex),
			PriceLogReturn: math.Log(cur.ContractPriceIndex) - math.Log(prev.ContractPriceIndex),
			HBMShareDelta:  hbmDelta,
		})
	}
	return rows
}

// Momentum calculates the percent change of prices over lookback periods,
// up to and including index i. Returns 0 when fewer than lookback+1 points
// of history are available.
func Momentum(prices []float64, i, lookback int) float64 {
	if i < lookback || i >= len(prices) || prices[i-lookback] == 0 {
		return 0
	}
	return (prices[i] - prices[i-lookback]) / prices[i-lookback]
}

// LogReturns calculates log returns of a price series.
// Returns slice of length: len(prices) - 1.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	result := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		result = append(result, math.Log(prices[i])-math.Log(prices[i-1]))
	}
	return result
}

// PercentChanges calculates one-period percent changes of a series.
// Returns slice of length: len(values) - 1.
func PercentChanges(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}
	result := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		result = append(result, (values[i]-values[i-1])/values[i-1])
	}
	return result
}

// CapexIntensity calculates capex as a fraction of revenue.
func CapexIntensity(capex, revenue float64) float64 {
	if revenue == 0 {
		return 0
	}
	return capex / revenue
}

// RegimeScore maps a market state to a continuous score in [-1, 1],
// -1 for deep glut and +1 for maximum tightness.
func RegimeScore(utilization, inventory, uStar, iStar float64) float64 {
	utilScore := (utilization - uStar) / 0.15
	invScore := (iStar - inventory) / 8.0
	score := (utilScore + invScore) / 2.0
	return math.Max(-1.0, math.Min(1.0, score))
}
