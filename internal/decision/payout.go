package decision

import (
	"math"

	"github.com/ppiankov/adjudex/internal/model"
)

// centEpsilon absorbs binary floating point error before rounding to cents
const centEpsilon = 1e-6

// roundHalfUp rounds to cents, halves away from zero
func roundHalfUp(v float64) float64 {
	if v < 0 {
		return -roundHalfUp(-v)
	}
	return math.Floor(v*100+0.5+centEpsilon) / 100
}

// roundUp rounds up to the next cent
func roundUp(v float64) float64 {
	return math.Ceil(v*100-centEpsilon) / 100
}

// ComputePayout applies, in order: cap, coverage percent, tax, deductible.
// Only COVERED amounts are paid; the payout is never negative
func ComputePayout(coverages []model.LineItemCoverage, policy model.PolicyCoverage, taxRate float64, odometer *int) model.PayoutBreakdown {
	gross := model.Totals(coverages).GrossCovered
	if gross < 0 {
		gross = 0
	}

	b := model.PayoutBreakdown{
		GrossCovered: roundHalfUp(gross),
		TaxRate:      taxRate,
	}

	// Rule 1: coverage cap on the gross covered amount
	b.Capped = b.GrossCovered
	if policy.CoverageCap != nil && b.Capped > *policy.CoverageCap {
		b.Capped = roundHalfUp(*policy.CoverageCap)
		b.CapApplied = true
	}

	// Rule 2: coverage percent, possibly reduced by the odometer scale
	b.CoveragePercent = policy.EffectivePercent(odometer)
	b.AfterRate = roundHalfUp(b.Capped * b.CoveragePercent)

	// Rule 3: tax, rounded up to the cent
	b.TaxAmount = roundUp(b.AfterRate * taxRate)
	b.Subtotal = roundHalfUp(b.AfterRate + b.TaxAmount)

	// Rule 4: deductible from the tax-inclusive subtotal
	b.Deductible = roundHalfUp(math.Max(policy.Deductible.Percent*b.Subtotal, policy.Deductible.Floor))

	b.Payout = roundHalfUp(math.Max(b.Subtotal-b.Deductible, 0))
	return b
}
