package score

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/adjudex/internal/model"
)

func defaultScorer() *Scorer {
	return NewScorer(model.DefaultConfig().Confidence)
}

func coverageWith(status model.CoverageStatus, method model.MatchMethod, confidence float64) model.LineItemCoverage {
	c := model.NewCoverage(0, model.LineItem{Description: "item", ItemType: model.ItemTypePart, TotalPrice: 100})
	c.Apply(model.TraceStep{Source: model.SourceReasoning, Verdict: status, Method: method, Confidence: confidence})
	return c
}

func passingChecks(n int) model.ScreeningResult {
	var r model.ScreeningResult
	for i := 0; i < n; i++ {
		r.Checks = append(r.Checks, model.ScreeningCheck{CheckID: "C", State: model.CheckEvaluated, Verdict: model.CheckPass})
	}
	return r
}

func fullFacts() model.ClaimFacts {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	odo := 50000
	return model.ClaimFacts{
		PolicyStart:     &now,
		PolicyEnd:       &now,
		DamageDate:      &now,
		ReportedDate:    &now,
		Odometer:        &odo,
		PolicyVIN:       "VIN1",
		VehicleVIN:      "VIN1",
		DocumentQuality: map[string]float64{"invoice": 0.95, "policy": 0.9},
	}
}

func findComponent(t *testing.T, s model.ConfidenceSummary, name string) model.ComponentScore {
	t.Helper()
	for _, c := range s.Components {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("component %s not found", name)
	return model.ComponentScore{}
}

func TestScorer_Calculate_HighConfidence(t *testing.T) {
	declared := 1081.0
	in := Input{
		Facts: fullFacts(),
		Invoice: model.Invoice{
			LineItems:     []model.LineItem{{Description: "Turbolader", Quantity: 1, UnitPrice: 1000, TotalPrice: 1000}},
			TaxRate:       0.081,
			DeclaredTotal: &declared,
		},
		Coverages: []model.LineItemCoverage{coverageWith(model.StatusCovered, model.MethodRule, 1.0)},
		Screening: passingChecks(10),
		Verdict:   model.ClaimVerdict{Decision: model.DecisionApprove, Payout: 931},
	}

	result := defaultScorer().Calculate(in)

	if result.Band != model.BandHigh {
		t.Errorf("Expected HIGH band, got %s (%s)", result.Band, result.Explain)
	}
	if result.Composite < 0.9 || result.Composite > 1 {
		t.Errorf("Expected composite in [0.9, 1], got %.4f", result.Composite)
	}
	if len(result.Components) != 5 {
		t.Fatalf("Expected 5 components, got %d", len(result.Components))
	}

	weightSum := 0.0
	for _, c := range result.Components {
		if !c.Present {
			t.Errorf("Expected component %s to be present", c.Name)
		}
		weightSum += c.Weight
	}
	if math.Abs(weightSum-1) > 1e-9 {
		t.Errorf("Expected effective weights to sum to 1, got %.6f", weightSum)
	}
}

func TestScorer_Calculate_RedistributesAbsentWeights(t *testing.T) {
	// No document quality, no declared total, no line arithmetic, no VIN check
	in := Input{
		Coverages: []model.LineItemCoverage{coverageWith(model.StatusCovered, model.MethodReasoning, 0.9)},
		Verdict:   model.ClaimVerdict{Decision: model.DecisionApprove},
	}

	result := defaultScorer().Calculate(in)

	doc := findComponent(t, result, ComponentDocumentQuality)
	if doc.Present || doc.Weight != 0 {
		t.Errorf("Expected document quality absent with zero weight, got %+v", doc)
	}
	cons := findComponent(t, result, ComponentConsistency)
	if cons.Present {
		t.Errorf("Expected consistency absent")
	}

	// Present: completeness 0.20, coverage 0.30, clarity 0.20
	cov := findComponent(t, result, ComponentCoverageReliability)
	if math.Abs(cov.Weight-0.30/0.70) > 1e-9 {
		t.Errorf("Expected coverage weight %.4f, got %.4f", 0.30/0.70, cov.Weight)
	}

	expected := 0.0
	for _, c := range result.Components {
		expected += c.Score * c.Weight
	}
	if math.Abs(result.Composite-expected) > 1e-4 {
		t.Errorf("Composite %.4f does not match weighted mean %.4f", result.Composite, expected)
	}
}

func TestScorer_Calculate_LowConfidence(t *testing.T) {
	in := Input{
		Coverages: []model.LineItemCoverage{
			coverageWith(model.StatusReviewNeeded, model.MethodReasoning, 0),
			coverageWith(model.StatusReviewNeeded, model.MethodReasoning, 0),
		},
		Screening: model.ScreeningResult{Checks: []model.ScreeningCheck{
			{CheckID: "A", Verdict: model.CheckInconclusive},
			{CheckID: "B", Verdict: model.CheckSkipped},
		}},
		Verdict: model.ClaimVerdict{Decision: model.DecisionRefer},
	}

	result := defaultScorer().Calculate(in)
	if result.Band != model.BandLow {
		t.Errorf("Expected LOW band, got %s (%.4f)", result.Band, result.Composite)
	}
}

func TestScorer_DetermineBand(t *testing.T) {
	s := defaultScorer()
	tests := []struct {
		composite float64
		want      model.ConfidenceBand
	}{
		{1.0, model.BandHigh},
		{0.80, model.BandHigh},
		{0.7999, model.BandModerate},
		{0.55, model.BandModerate},
		{0.5499, model.BandLow},
		{0, model.BandLow},
	}
	for _, tt := range tests {
		if got := s.determineBand(tt.composite); got != tt.want {
			t.Errorf("determineBand(%.4f) = %s, want %s", tt.composite, got, tt.want)
		}
	}
}

func TestScorer_Consistency_DeclaredTotalMismatch(t *testing.T) {
	declared := 2000.0
	in := Input{Invoice: model.Invoice{
		LineItems:     []model.LineItem{{Description: "x", Quantity: 2, UnitPrice: 100, TotalPrice: 150}},
		DeclaredTotal: &declared,
	}}

	signals := consistency(in)
	if len(signals) != 2 {
		t.Fatalf("Expected 2 signals, got %d", len(signals))
	}
	if signals[0].Value > 0.1 {
		t.Errorf("Expected low declared_total signal, got %.4f", signals[0].Value)
	}
	if signals[1].Value != 0 {
		t.Errorf("Expected line arithmetic mismatch, got %.4f", signals[1].Value)
	}
}

func TestScorer_ExplainListsComponents(t *testing.T) {
	result := defaultScorer().Calculate(Input{
		Coverages: []model.LineItemCoverage{coverageWith(model.StatusCovered, model.MethodRule, 1)},
	})
	if !strings.Contains(result.Explain, ComponentCoverageReliability) {
		t.Errorf("Expected explain to mention coverage reliability: %s", result.Explain)
	}
}

func TestScorer_DecisionClarity_SoftFailureLowersScore(t *testing.T) {
	clean := Input{
		Screening: passingChecks(10),
		Verdict:   model.ClaimVerdict{Decision: model.DecisionApprove, Payout: 931},
	}
	soft := clean
	soft.Screening = passingChecks(10)
	soft.Screening.Checks[3] = model.ScreeningCheck{CheckID: "CONSEQUENTIAL_DAMAGE", State: model.CheckEvaluated, Verdict: model.CheckFail}

	s := defaultScorer()
	cleanClarity := findComponent(t, s.Calculate(clean), ComponentDecisionClarity)
	softClarity := findComponent(t, s.Calculate(soft), ComponentDecisionClarity)

	var found bool
	for _, sig := range softClarity.Signals {
		if sig.Name == "soft_failures" {
			found = true
			if math.Abs(sig.Value-0.5) > 1e-9 {
				t.Errorf("Expected soft_failures 0.5, got %.4f", sig.Value)
			}
		}
	}
	if !found {
		t.Fatalf("Expected a soft_failures signal, got %+v", softClarity.Signals)
	}
	for _, sig := range cleanClarity.Signals {
		if sig.Name == "soft_failures" {
			t.Errorf("Clean claim should carry no soft_failures signal")
		}
	}
	if softClarity.Score >= cleanClarity.Score {
		t.Errorf("Expected soft FAIL to lower clarity: %.4f >= %.4f", softClarity.Score, cleanClarity.Score)
	}
}
