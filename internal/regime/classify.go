package regime

import "github.com/newthinker/memcycle/internal/core"

// Threshold rule for historical labeling. Tight and glut both require the
// utilization and inventory conditions to hold together; everything else is
// balanced.
const (
	tightUtilMin = 0.88
	tightInvMax  = 10.0
	glutUtilMax  = 0.78
	glutInvMin   = 16.0
)

// Classify labels a single market state using the threshold rule.
func Classify(utilization, inventory float64) core.Regime {
	if utilization >= tightUtilMin && inventory <= tightInvMax {
		return core.RegimeTight
	}
	if utilization <= glutUtilMax && inventory >= glutInvMin {
		return core.RegimeGlut
	}
	return core.RegimeBalanced
}

// ClassifyAll labels every observation with the threshold rule, preserving
// order.
func ClassifyAll(obs []core.Observation) []core.Regime {
	labels := make([]core.Regime, len(obs))
	for i, o := range obs {
		labels[i] = Classify(o.Utilization, o.InventoryWeeks)
	}
	return labels
}
