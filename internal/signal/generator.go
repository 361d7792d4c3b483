// Package signal turns regime probabilities, price momentum and inventory
// trend into discrete trading recommendations. Generation is a pure
// function: no fitted state, recomputed on demand.
package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/memcycle/internal/core"
)

// maxPositionBase caps position sizing at 30% of the portfolio before
// confidence and risk-tolerance scaling.
const maxPositionBase = 0.3

// holdTightFloor: above this tight probability a HOLD means "stay
// invested" and carries the tight probability as confidence.
const holdTightFloor = 0.4

// Generator produces trading signals from regime probabilities.
type Generator struct {
	buyThreshold  float64
	sellThreshold float64
	riskTolerance float64
}

// New creates a Generator. Thresholds are regime-probability cutoffs in
// (0, 1); riskTolerance scales position sizes in [0, 1].
func New(buyThreshold, sellThreshold, riskTolerance float64) *Generator {
	return &Generator{
		buyThreshold:  buyThreshold,
		sellThreshold: sellThreshold,
		riskTolerance: riskTolerance,
	}
}

// Generate evaluates the signal rules:
//
//	BUY  when prob(tight) clears the buy threshold with positive momentum
//	     and falling inventory;
//	SELL when prob(glut) clears the sell threshold with negative momentum
//	     and rising inventory;
//	HOLD otherwise.
//
// BUY/SELL confidence is the regime probability scaled up by momentum
// magnitude, capped at 1. HOLD confidence is prob(tight) when it exceeds
// 0.4 (stay invested), else prob(balanced).
func (g *Generator) Generate(probs core.RegimeProbs, momentum, inventoryTrend float64) core.Signal {
	now := time.Now()

	if probs.Tight > g.buyThreshold && momentum > 0 && inventoryTrend < 0 {
		confidence := math.Min(probs.Tight*(1+math.Abs(momentum)), 1.0)
		return core.Signal{
			Action:       core.ActionBuy,
			Confidence:   confidence,
			PositionSize: g.positionSize(confidence),
			Reason: fmt.Sprintf("tight regime (p=%.2f) with rising prices and falling inventory",
				probs.Tight),
			GeneratedAt: now,
		}
	}

	if probs.Glut > g.sellThreshold && momentum < 0 && inventoryTrend > 0 {
		confidence := math.Min(probs.Glut*(1+math.Abs(momentum)), 1.0)
		return core.Signal{
			Action:       core.ActionSell,
			Confidence:   confidence,
			PositionSize: g.positionSize(confidence),
			Reason: fmt.Sprintf("glut regime (p=%.2f) with falling prices and rising inventory",
				probs.Glut),
			GeneratedAt: now,
		}
	}

	if probs.Tight > holdTightFloor {
		return core.Signal{
			Action:      core.ActionHold,
			Confidence:  probs.Tight,
			Reason:      fmt.Sprintf("leaning tight (p=%.2f), stay invested", probs.Tight),
			GeneratedAt: now,
		}
	}

	return core.Signal{
		Action:      core.ActionHold,
		Confidence:  probs.Balanced,
		Reason:      "no regime conviction",
		GeneratedAt: now,
	}
}

// positionSize scales the base cap by confidence and risk tolerance.
// HOLD signals carry no position.
func (g *Generator) positionSize(confidence float64) float64 {
	return maxPositionBase * confidence * g.riskTolerance
}
