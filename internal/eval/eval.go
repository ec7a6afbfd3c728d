// Package eval measures decision accuracy on a labeled claim set and checks
// that confidence bands track the observed error rate
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/ppiankov/adjudex/internal/model"
	"github.com/ppiankov/adjudex/internal/worker"
)

// DefaultPayoutTolerance is the largest payout difference still counted as correct
const DefaultPayoutTolerance = 0.01

// Case is one labeled claim
type Case struct {
	Claim            model.ClaimInput `json:"claim"`
	ExpectedDecision model.Decision   `json:"expected_decision"`
	ExpectedPayout   *float64         `json:"expected_payout,omitempty"` // nil skips the payout comparison
}

// LabelSet is a held-out evaluation set
type LabelSet struct {
	Version string `json:"version,omitempty"`
	Cases   []Case `json:"cases"`
}

// LoadLabels reads a label set from a JSON file
func LoadLabels(path string) (*LabelSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	var set LabelSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	for i, c := range set.Cases {
		if c.Claim.ClaimID == "" {
			return nil, fmt.Errorf("case %d: claim_id is required", i)
		}
		switch c.ExpectedDecision {
		case model.DecisionApprove, model.DecisionDeny, model.DecisionRefer:
		default:
			return nil, fmt.Errorf("case %d (%s): unknown expected_decision %q", i, c.Claim.ClaimID, c.ExpectedDecision)
		}
	}
	return &set, nil
}

// CaseResult compares one adjudication against its label
type CaseResult struct {
	ClaimID          string               `json:"claim_id"`
	ExpectedDecision model.Decision       `json:"expected_decision"`
	ActualDecision   model.Decision       `json:"actual_decision,omitempty"`
	ExpectedPayout   *float64             `json:"expected_payout,omitempty"`
	ActualPayout     float64              `json:"actual_payout"`
	Band             model.ConfidenceBand `json:"band,omitempty"`
	Composite        float64              `json:"composite_score"`
	DecisionCorrect  bool                 `json:"decision_correct"`
	PayoutCorrect    bool                 `json:"payout_correct"`
	Error            string               `json:"error,omitempty"`
}

// Correct reports whether both decision and payout match the label
func (r CaseResult) Correct() bool {
	return r.Error == "" && r.DecisionCorrect && r.PayoutCorrect
}

// BandStats is the observed error rate within one confidence band
type BandStats struct {
	Band      model.ConfidenceBand `json:"band"`
	Count     int                  `json:"count"`
	Errors    int                  `json:"errors"`
	ErrorRate float64              `json:"error_rate"`
}

// Report is the outcome of an evaluation run
type Report struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Failed   int     `json:"failed"` // Cases whose adjudication returned an error
	Accuracy float64 `json:"accuracy"`

	// Confusion counts expected decision -> actual decision
	Confusion map[model.Decision]map[model.Decision]int `json:"confusion"`

	Bands      []BandStats  `json:"bands"`
	BandsValid bool         `json:"bands_valid"`
	Cases      []CaseResult `json:"cases"`
}

// Evaluator runs labeled cases through an adjudicator
type Evaluator struct {
	adjudicator     worker.Adjudicator
	concurrency     int
	payoutTolerance float64
}

// NewEvaluator creates an evaluator. A non-positive tolerance uses DefaultPayoutTolerance
func NewEvaluator(adjudicator worker.Adjudicator, concurrency int, payoutTolerance float64) *Evaluator {
	if payoutTolerance <= 0 {
		payoutTolerance = DefaultPayoutTolerance
	}
	return &Evaluator{
		adjudicator:     adjudicator,
		concurrency:     concurrency,
		payoutTolerance: payoutTolerance,
	}
}

// Evaluate adjudicates every case and scores the results
func (e *Evaluator) Evaluate(ctx context.Context, cases []Case) (*Report, error) {
	claims := make([]model.ClaimInput, len(cases))
	for i, c := range cases {
		claims[i] = c.Claim
	}

	results := worker.NewClaimBatchProcessor(e.adjudicator, e.concurrency).ProcessClaims(ctx, claims)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation cancelled: %w", err)
	}

	report := &Report{
		Total:     len(cases),
		Confusion: make(map[model.Decision]map[model.Decision]int),
		Cases:     make([]CaseResult, len(cases)),
	}
	for i, c := range cases {
		cr := e.compare(c, results[i])
		report.Cases[i] = cr
		if cr.Error != "" {
			report.Failed++
			continue
		}
		if cr.Correct() {
			report.Correct++
		}
		if report.Confusion[cr.ExpectedDecision] == nil {
			report.Confusion[cr.ExpectedDecision] = make(map[model.Decision]int)
		}
		report.Confusion[cr.ExpectedDecision][cr.ActualDecision]++
	}
	if report.Total > 0 {
		report.Accuracy = float64(report.Correct) / float64(report.Total)
	}
	report.Bands = BandBreakdown(report.Cases)
	report.BandsValid = BandsMonotonic(report.Bands)
	return report, nil
}

func (e *Evaluator) compare(c Case, res *worker.ClaimResult) CaseResult {
	cr := CaseResult{
		ClaimID:          c.Claim.ClaimID,
		ExpectedDecision: c.ExpectedDecision,
		ExpectedPayout:   c.ExpectedPayout,
	}
	if res == nil || res.Error != nil || res.Dossier == nil {
		cr.Error = "no dossier"
		if res != nil && res.Error != nil {
			cr.Error = res.Error.Error()
		}
		return cr
	}

	d := res.Dossier
	cr.ActualDecision = d.Verdict.Decision
	cr.ActualPayout = d.Verdict.Payout
	cr.Band = d.Confidence.Band
	cr.Composite = d.Confidence.Composite
	cr.DecisionCorrect = cr.ActualDecision == c.ExpectedDecision
	cr.PayoutCorrect = c.ExpectedPayout == nil ||
		math.Abs(*c.ExpectedPayout-cr.ActualPayout) <= e.payoutTolerance
	return cr
}

var bandOrder = []model.ConfidenceBand{model.BandHigh, model.BandModerate, model.BandLow}

// BandBreakdown groups adjudicated cases by band, HIGH first. Failed cases are excluded
func BandBreakdown(cases []CaseResult) []BandStats {
	byBand := make(map[model.ConfidenceBand]*BandStats)
	for _, b := range bandOrder {
		byBand[b] = &BandStats{Band: b}
	}
	for _, c := range cases {
		if c.Error != "" {
			continue
		}
		s, ok := byBand[c.Band]
		if !ok {
			continue
		}
		s.Count++
		if !c.Correct() {
			s.Errors++
		}
	}

	out := make([]BandStats, 0, len(bandOrder))
	for _, b := range bandOrder {
		s := *byBand[b]
		if s.Count > 0 {
			s.ErrorRate = float64(s.Errors) / float64(s.Count)
		}
		out = append(out, s)
	}
	return out
}

// BandsMonotonic reports whether the error rate does not decrease from HIGH
// to LOW. Empty bands are ignored; fewer than two populated bands prove nothing
func BandsMonotonic(bands []BandStats) bool {
	rank := make(map[model.ConfidenceBand]int, len(bandOrder))
	for i, b := range bandOrder {
		rank[b] = i
	}
	populated := make([]BandStats, 0, len(bands))
	for _, b := range bands {
		if b.Count > 0 {
			populated = append(populated, b)
		}
	}
	if len(populated) < 2 {
		return false
	}
	sort.Slice(populated, func(i, j int) bool {
		return rank[populated[i].Band] < rank[populated[j].Band]
	})
	for i := 1; i < len(populated); i++ {
		if populated[i].ErrorRate < populated[i-1].ErrorRate {
			return false
		}
	}
	return true
}

// WriteText prints a human-readable report
func (r *Report) WriteText(w io.Writer) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Evaluation: %d/%d correct (%.1f%%), %d failed\n",
		r.Correct, r.Total, r.Accuracy*100, r.Failed)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "  Confidence bands:\n")
	for _, b := range r.Bands {
		fmt.Fprintf(w, "    %-9s %4d cases  %4d errors  %5.1f%% error rate\n",
			b.Band, b.Count, b.Errors, b.ErrorRate*100)
	}
	if r.BandsValid {
		fmt.Fprintf(w, "  ✓ Error rate rises from HIGH to LOW\n")
	} else {
		fmt.Fprintf(w, "  ✗ Bands do not track observed errors\n")
	}
	fmt.Fprintf(w, "\n")

	decisions := []model.Decision{model.DecisionApprove, model.DecisionDeny, model.DecisionRefer}
	fmt.Fprintf(w, "  Confusion (expected → actual):\n")
	fmt.Fprintf(w, "    %-9s %8s %8s %8s\n", "", decisions[0], decisions[1], decisions[2])
	for _, exp := range decisions {
		row := r.Confusion[exp]
		fmt.Fprintf(w, "    %-9s %8d %8d %8d\n", exp, row[decisions[0]], row[decisions[1]], row[decisions[2]])
	}

	var wrong []CaseResult
	for _, c := range r.Cases {
		if !c.Correct() {
			wrong = append(wrong, c)
		}
	}
	if len(wrong) > 0 {
		fmt.Fprintf(w, "\n  Mismatches:\n")
		for _, c := range wrong {
			if c.Error != "" {
				fmt.Fprintf(w, "    ✗ %s: %s\n", c.ClaimID, c.Error)
				continue
			}
			fmt.Fprintf(w, "    ✗ %s: expected %s, got %s (payout %.2f, %s)\n",
				c.ClaimID, c.ExpectedDecision, c.ActualDecision, c.ActualPayout, c.Band)
		}
	}
	fmt.Fprintf(w, "\n")
}
