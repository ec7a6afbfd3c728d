// Package decision derives the authoritative claim verdict and payout.
// Pure domain logic: no I/O, no side effects
package decision

import (
	"fmt"

	"github.com/ppiankov/adjudex/internal/model"
)

// Engine derives verdicts
type Engine struct {
	tolerance int
}

// NewEngine creates a decision engine
func NewEngine(cfg model.DecisionConfig) *Engine {
	tolerance := cfg.InconclusiveTolerance
	if tolerance < 0 {
		tolerance = 0
	}
	return &Engine{tolerance: tolerance}
}

// DeriveVerdict applies the verdict rule chain.
// Rule priority (first match wins):
//  1. Any hard FAIL - DENY
//  2. Any hard or never-tolerated INCONCLUSIVE, more soft INCONCLUSIVE
//     than tolerated, or any item still REVIEW_NEEDED - REFER
//  3. Payout not positive - DENY
//  4. Otherwise APPROVE
func (e *Engine) DeriveVerdict(screening model.ScreeningResult, coverages []model.LineItemCoverage, payout model.PayoutBreakdown) model.ClaimVerdict {
	// Rule 1: hard failures
	if failures := screening.HardFailures(); len(failures) > 0 {
		refs := make([]model.RationaleRef, 0, len(failures))
		for _, c := range failures {
			refs = append(refs, checkRef(c))
		}
		return model.ClaimVerdict{Decision: model.DecisionDeny, Payout: 0, Rationale: refs}
	}

	// Rule 2: inconclusive checks and open items
	var inconclusive []model.ScreeningCheck
	forced, soft := 0, 0
	for _, c := range screening.Checks {
		if c.Verdict != model.CheckInconclusive {
			continue
		}
		inconclusive = append(inconclusive, c)
		if c.IsHard || c.NeverTolerated {
			forced++
		} else {
			soft++
		}
	}
	var open []model.LineItemCoverage
	for _, c := range coverages {
		if c.Status == model.StatusReviewNeeded {
			open = append(open, c)
		}
	}
	if forced > 0 || soft > e.tolerance || len(open) > 0 {
		refs := make([]model.RationaleRef, 0, len(inconclusive)+len(open))
		for _, c := range inconclusive {
			refs = append(refs, checkRef(c))
		}
		for _, c := range open {
			refs = append(refs, itemRef(c))
		}
		return model.ClaimVerdict{Decision: model.DecisionRefer, Payout: payout.Payout, Rationale: refs}
	}

	// Rule 3: nothing to pay
	payoutRef := model.RationaleRef{
		Kind:   model.RefPayout,
		ID:     "payout",
		Detail: fmt.Sprintf("subtotal %.2f, deductible %.2f, payout %.2f", payout.Subtotal, payout.Deductible, payout.Payout),
	}
	if payout.Payout <= 0 {
		return model.ClaimVerdict{Decision: model.DecisionDeny, Payout: 0, Rationale: []model.RationaleRef{payoutRef}}
	}

	// Rule 4: approve with the covered items
	var refs []model.RationaleRef
	for _, c := range coverages {
		if c.Status == model.StatusCovered {
			refs = append(refs, itemRef(c))
		}
	}
	refs = append(refs, payoutRef)
	return model.ClaimVerdict{Decision: model.DecisionApprove, Payout: payout.Payout, Rationale: refs}
}

func checkRef(c model.ScreeningCheck) model.RationaleRef {
	return model.RationaleRef{
		Kind:   model.RefCheck,
		ID:     c.CheckID,
		Detail: fmt.Sprintf("%s: %s", c.Verdict, c.Reason),
	}
}

func itemRef(c model.LineItemCoverage) model.RationaleRef {
	return model.RationaleRef{
		Kind:   model.RefItem,
		ID:     fmt.Sprintf("%d", c.Index),
		Detail: fmt.Sprintf("%s %s (%.2f)", c.Description, c.Status, c.TotalPrice),
	}
}
