package regime

import (
	"math"

	"github.com/newthinker/memcycle/internal/feature"
)

// regression is an ordinary least-squares fit of next-period log price
// return on (util gap, inv gap, HBM share delta).
type regression struct {
	intercept float64
	coef      [3]float64
}

// predict applies the fitted coefficients to a feature vector.
func (r regression) predict(x [3]float64) float64 {
	y := r.intercept
	for i, c := range r.coef {
		y += c * x[i]
	}
	return y
}

// fitOLS fits the regression via the normal equations. The second return
// value is the sample standard deviation of the target within the subset,
// used as the regime's volatility.
func fitOLS(rows []feature.Row) (regression, float64) {
	// Normal equations for [intercept, utilGap, invGap, hbmShareDelta].
	const dim = 4
	var a [dim][dim]float64
	var b [dim]float64
	for _, row := range rows {
		x := [dim]float64{1, row.UtilGap, row.InvGap, row.HBMShareDelta}
		y := row.PriceLogReturn
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				a[i][j] += x[i] * x[j]
			}
			b[i] += x[i] * y
		}
	}

	sol := solveLinear(a, b)

	var reg regression
	reg.intercept = sol[0]
	copy(reg.coef[:], sol[1:])

	return reg, sampleStd(rows)
}

// solveLinear solves a 4x4 system by Gaussian elimination with partial
// pivoting. Degenerate columns (e.g. an HBM share delta that is constant
// zero across the subset) get a zero coefficient instead of failing.
func solveLinear(a [4][4]float64, b [4]float64) [4]float64 {
	const dim = 4
	const eps = 1e-12

	for col := 0; col < dim; col++ {
		pivot := col
		for r := col + 1; r < dim; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < eps {
			// Dependent column: pin its coefficient to zero.
			for r := 0; r < dim; r++ {
				a[r][col] = 0
			}
			a[col][col] = 1
			b[col] = 0
			continue
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < dim; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < dim; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	var x [4]float64
	for i := dim - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < dim; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x
}

// sampleStd is the standard deviation of the target returns with Bessel's
// correction (n-1 denominator).
func sampleStd(rows []feature.Row) float64 {
	if len(rows) < 2 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		sum += r.PriceLogReturn
	}
	mean := sum / float64(len(rows))

	var variance float64
	for _, r := range rows {
		d := r.PriceLogReturn - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(rows)-1))
}
