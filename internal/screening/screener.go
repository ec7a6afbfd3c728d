// Package screening evaluates the fixed, ordered set of eligibility checks
// over a claim-facts snapshot
package screening

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/ppiankov/adjudex/internal/model"
)

// Check IDs in default evaluation order
const (
	CheckPolicyActive        = "POLICY_ACTIVE"
	CheckWaitingPeriod       = "WAITING_PERIOD"
	CheckVehicleIdentity     = "VEHICLE_IDENTITY"
	CheckMileageLimit        = "MILEAGE_LIMIT"
	CheckServiceCompliance   = "SERVICE_COMPLIANCE"
	CheckShopAuthorization   = "SHOP_AUTHORIZATION"
	CheckReportingDeadline   = "REPORTING_DEADLINE"
	CheckFaultCodes          = "FAULT_CODES"
	CheckConsequentialDamage = "CONSEQUENTIAL_DAMAGE"
	CheckComponentCoverage   = "COMPONENT_COVERAGE"
)

// Input is the read-only snapshot the checks are evaluated against
type Input struct {
	Facts     model.ClaimFacts
	Items     []model.LineItem
	Coverages []model.LineItemCoverage
}

// Outcome is what a check function returns
type Outcome struct {
	Verdict  model.CheckVerdict
	Reason   string
	Evidence map[string]interface{}
}

// Check is one screening rule. Eval must be a pure function of its input.
// An INCONCLUSIVE from a NeverTolerated check always refers, whatever the
// soft-check tolerance
type Check struct {
	ID             string
	Hard           bool
	NeverTolerated bool
	Eval           func(Input) Outcome
}

// Screener runs checks in order
type Screener struct {
	checks []Check
}

// New builds the default check set from configuration
func New(cfg model.ScreeningConfig) (*Screener, error) {
	consequential := make([]*regexp.Regexp, 0, len(cfg.ConsequentialPatterns))
	for _, p := range cfg.ConsequentialPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("consequential pattern %q: %w", p, err)
		}
		consequential = append(consequential, re)
	}

	faultPrefixes := make([]string, 0, len(cfg.FaultCodeCategories))
	for prefix := range cfg.FaultCodeCategories {
		faultPrefixes = append(faultPrefixes, prefix)
	}
	// Longest prefix first, ties alphabetical
	sort.Slice(faultPrefixes, func(i, j int) bool {
		if len(faultPrefixes[i]) != len(faultPrefixes[j]) {
			return len(faultPrefixes[i]) > len(faultPrefixes[j])
		}
		return faultPrefixes[i] < faultPrefixes[j]
	})
	faults := faultMap{prefixes: faultPrefixes, categories: cfg.FaultCodeCategories}

	return NewWithChecks([]Check{
		{ID: CheckPolicyActive, Hard: true, Eval: policyActive},
		{ID: CheckWaitingPeriod, Hard: true, Eval: waitingPeriod(cfg.WaitingDays)},
		{ID: CheckVehicleIdentity, Hard: true, Eval: vehicleIdentity},
		{ID: CheckMileageLimit, Hard: true, Eval: mileageLimit},
		{ID: CheckServiceCompliance, Hard: false, Eval: serviceCompliance(cfg.ServiceIntervalMonths, cfg.ServiceIntervalKM)},
		{ID: CheckShopAuthorization, Hard: false, Eval: shopAuthorization},
		{ID: CheckReportingDeadline, Hard: false, Eval: reportingDeadline(cfg.ReportingDays)},
		{ID: CheckFaultCodes, Hard: false, Eval: faultCodes(faults)},
		{ID: CheckConsequentialDamage, Hard: false, NeverTolerated: true, Eval: consequentialDamage(consequential)},
		{ID: CheckComponentCoverage, Hard: true, Eval: componentCoverage},
	})
}

// NewWithChecks builds a screener over an explicit check list
func NewWithChecks(checks []Check) (*Screener, error) {
	seen := make(map[string]bool)
	for _, c := range checks {
		if c.ID == "" || c.Eval == nil {
			return nil, fmt.Errorf("check %q: id and eval are required", c.ID)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate check %q", c.ID)
		}
		seen[c.ID] = true
	}
	return &Screener{checks: checks}, nil
}

// Run moves every check from PENDING to EVALUATED in order and returns
// the ordered result
func (s *Screener) Run(in Input) model.ScreeningResult {
	result := model.ScreeningResult{Checks: make([]model.ScreeningCheck, len(s.checks))}
	for i, c := range s.checks {
		result.Checks[i] = model.ScreeningCheck{
			CheckID:        c.ID,
			State:          model.CheckPending,
			IsHard:         c.Hard,
			NeverTolerated: c.NeverTolerated,
		}
	}

	for i, c := range s.checks {
		out := c.Eval(in)
		if out.Verdict == "" {
			out.Verdict = model.CheckInconclusive
			out.Reason = "check produced no verdict"
		}
		rec := &result.Checks[i]
		rec.Verdict = out.Verdict
		rec.Reason = out.Reason
		rec.Evidence = out.Evidence
		rec.State = model.CheckEvaluated
	}
	return result
}
