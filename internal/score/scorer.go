package score

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ppiankov/adjudex/internal/model"
	"github.com/ppiankov/adjudex/internal/screening"
)

// Component names
const (
	ComponentDocumentQuality     = "document_quality"
	ComponentDataCompleteness    = "data_completeness"
	ComponentConsistency         = "consistency"
	ComponentCoverageReliability = "coverage_reliability"
	ComponentDecisionClarity     = "decision_clarity"
)

// Input is everything the scorer looks at. Scoring is advisory and never
// changes the verdict
type Input struct {
	Facts     model.ClaimFacts
	Invoice   model.Invoice
	Coverages []model.LineItemCoverage
	Screening model.ScreeningResult
	Verdict   model.ClaimVerdict
}

// Scorer calculates the composite confidence of a decision
type Scorer struct {
	weights      model.ConfidenceWeights
	highBand     float64
	moderateBand float64
}

// NewScorer creates a new scorer
func NewScorer(cfg model.ConfidenceConfig) *Scorer {
	if cfg.HighBand <= 0 {
		cfg.HighBand = 0.80
	}
	if cfg.ModerateBand <= 0 {
		cfg.ModerateBand = 0.55
	}
	return &Scorer{weights: cfg.Weights, highBand: cfg.HighBand, moderateBand: cfg.ModerateBand}
}

// Calculate scores the five components and combines the present ones.
// Weights of absent components are redistributed proportionally
func (s *Scorer) Calculate(in Input) model.ConfidenceSummary {
	components := []model.ComponentScore{
		// 1. Document quality
		component(ComponentDocumentQuality, s.weights.DocumentQuality, documentQuality(in)),
		// 2. Data completeness
		component(ComponentDataCompleteness, s.weights.DataCompleteness, dataCompleteness(in)),
		// 3. Internal consistency
		component(ComponentConsistency, s.weights.Consistency, consistency(in)),
		// 4. Coverage-matching reliability
		component(ComponentCoverageReliability, s.weights.CoverageReliability, coverageReliability(in)),
		// 5. Decision clarity
		component(ComponentDecisionClarity, s.weights.DecisionClarity, decisionClarity(in)),
	}

	totalWeight := 0.0
	for _, c := range components {
		if c.Present {
			totalWeight += c.Weight
		}
	}

	composite := 0.0
	var parts []string
	for i := range components {
		c := &components[i]
		if !c.Present || totalWeight <= 0 {
			c.Weight = 0
			continue
		}
		c.Weight = c.Weight / totalWeight
		composite += c.Score * c.Weight
		parts = append(parts, fmt.Sprintf("%s %.2f x %.2f", c.Name, c.Score, c.Weight))
	}
	composite = math.Round(composite*10000) / 10000

	band := s.determineBand(composite)
	explain := fmt.Sprintf("composite %.2f (%s)", composite, band)
	if len(parts) > 0 {
		explain += ": " + strings.Join(parts, ", ")
	}

	return model.ConfidenceSummary{
		Composite:  composite,
		Band:       band,
		Components: components,
		Explain:    explain,
	}
}

// determineBand maps the composite score to a band
func (s *Scorer) determineBand(composite float64) model.ConfidenceBand {
	switch {
	case composite >= s.highBand:
		return model.BandHigh
	case composite >= s.moderateBand:
		return model.BandModerate
	default:
		return model.BandLow
	}
}

// component averages signals; no signals means the component is absent
func component(name string, weight float64, signals []model.Signal) model.ComponentScore {
	c := model.ComponentScore{Name: name, Weight: weight, Signals: signals}
	if len(signals) == 0 {
		return c
	}
	sum := 0.0
	for _, sig := range signals {
		sum += clamp(sig.Value)
	}
	c.Score = math.Round(sum/float64(len(signals))*10000) / 10000
	c.Present = true
	return c
}

// documentQuality uses the extraction confidence of each document
func documentQuality(in Input) []model.Signal {
	var signals []model.Signal
	for _, name := range sortedKeys(in.Facts.DocumentQuality) {
		q := in.Facts.DocumentQuality[name]
		signals = append(signals, model.Signal{
			Name:  "document:" + name,
			Value: clamp(q),
			Data:  map[string]interface{}{"extraction_confidence": q},
		})
	}
	return signals
}

// dataCompleteness measures how much evidence the checks and items had
func dataCompleteness(in Input) []model.Signal {
	var signals []model.Signal

	if n := len(in.Screening.Checks); n > 0 {
		skipped := in.Screening.Count(model.CheckSkipped)
		signals = append(signals, model.Signal{
			Name:  "checks_with_evidence",
			Value: float64(n-skipped) / float64(n),
			Data: map[string]interface{}{
				"checks":  n,
				"skipped": skipped,
				"formula": "(checks - skipped) / checks",
			},
		})
	}

	f := in.Facts
	fields := map[string]bool{
		"policy_start":  f.PolicyStart != nil,
		"policy_end":    f.PolicyEnd != nil,
		"damage_date":   f.DamageDate != nil,
		"reported_date": f.ReportedDate != nil,
		"odometer":      f.Odometer != nil,
		"vehicle_vin":   f.VehicleVIN != "",
		"policy_vin":    f.PolicyVIN != "",
	}
	present := 0
	var missing []string
	for _, name := range sortedKeys(fields) {
		if fields[name] {
			present++
		} else {
			missing = append(missing, name)
		}
	}
	signals = append(signals, model.Signal{
		Name:  "facts_present",
		Value: float64(present) / float64(len(fields)),
		Data: map[string]interface{}{
			"present": present,
			"fields":  len(fields),
			"missing": missing,
		},
	})

	if n := len(in.Invoice.LineItems); n > 0 {
		described := 0
		for _, item := range in.Invoice.LineItems {
			if strings.TrimSpace(item.Description) != "" {
				described++
			}
		}
		signals = append(signals, model.Signal{
			Name:  "items_described",
			Value: float64(described) / float64(n),
			Data:  map[string]interface{}{"items": n, "described": described},
		})
	}
	return signals
}

// consistency compares figures that should agree with each other
func consistency(in Input) []model.Signal {
	var signals []model.Signal

	if declared := in.Invoice.DeclaredTotal; declared != nil {
		sum := in.Invoice.Sum()
		expected := sum * (1 + in.Invoice.TaxRate)
		diff := math.Abs(expected - *declared)
		value := 1.0
		if *declared != 0 {
			value = 1 - math.Min(diff/math.Abs(*declared), 1)
		} else if diff > 0.01 {
			value = 0
		}
		signals = append(signals, model.Signal{
			Name:  "declared_total",
			Value: value,
			Data: map[string]interface{}{
				"declared": *declared,
				"computed": math.Round(expected*100) / 100,
				"formula":  "1 - min(|sum*(1+tax) - declared| / declared, 1)",
			},
		})
	}

	checked, consistent := 0, 0
	for _, item := range in.Invoice.LineItems {
		if item.Quantity <= 0 || item.UnitPrice == 0 {
			continue
		}
		checked++
		if math.Abs(item.Quantity*item.UnitPrice-item.TotalPrice) <= 0.01 {
			consistent++
		}
	}
	if checked > 0 {
		signals = append(signals, model.Signal{
			Name:  "line_arithmetic",
			Value: float64(consistent) / float64(checked),
			Data:  map[string]interface{}{"checked": checked, "consistent": consistent},
		})
	}

	if c, ok := in.Screening.Find(screening.CheckVehicleIdentity); ok && c.Verdict != model.CheckSkipped {
		value := 0.0
		switch c.Verdict {
		case model.CheckPass:
			value = 1
		case model.CheckInconclusive:
			value = 0.5
		}
		signals = append(signals, model.Signal{
			Name:  "vehicle_identity",
			Value: value,
			Data:  map[string]interface{}{"verdict": c.Verdict},
		})
	}
	return signals
}

// coverageReliability looks at how confidently items were matched
func coverageReliability(in Input) []model.Signal {
	n := len(in.Coverages)
	if n == 0 {
		return nil
	}

	sumConfidence := 0.0
	resolved := 0
	deterministic := 0
	for _, c := range in.Coverages {
		sumConfidence += c.Confidence
		if c.Status != model.StatusReviewNeeded {
			resolved++
		}
		if c.Method == model.MethodRule || c.Method == model.MethodPartNumber {
			deterministic++
		}
	}

	return []model.Signal{
		{
			Name:  "mean_match_confidence",
			Value: sumConfidence / float64(n),
			Data:  map[string]interface{}{"items": n},
		},
		{
			Name:  "resolved_items",
			Value: float64(resolved) / float64(n),
			Data:  map[string]interface{}{"items": n, "resolved": resolved, "deterministic": deterministic},
		},
	}
}

// decisionClarity rates how unambiguous the verdict is
func decisionClarity(in Input) []model.Signal {
	if len(in.Screening.Checks) == 0 && in.Verdict.Decision == "" {
		return nil
	}

	var signals []model.Signal
	evaluated := len(in.Screening.Checks) - in.Screening.Count(model.CheckSkipped)
	if evaluated > 0 {
		inconclusive := in.Screening.Count(model.CheckInconclusive)
		signals = append(signals, model.Signal{
			Name:  "conclusive_checks",
			Value: 1 - float64(inconclusive)/float64(evaluated),
			Data:  map[string]interface{}{"evaluated": evaluated, "inconclusive": inconclusive},
		})
	}

	// A soft FAIL never changes the verdict but says the claim is not clean
	var softFailed []string
	for _, c := range in.Screening.Checks {
		if !c.IsHard && c.Verdict == model.CheckFail {
			softFailed = append(softFailed, c.CheckID)
		}
	}
	if len(softFailed) > 0 {
		signals = append(signals, model.Signal{
			Name:  "soft_failures",
			Value: 1 / float64(1+len(softFailed)),
			Data:  map[string]interface{}{"checks": softFailed},
		})
	}

	var value float64
	switch {
	case in.Verdict.Decision == model.DecisionDeny && len(in.Screening.HardFailures()) > 0:
		value = 1
	case in.Verdict.Decision == model.DecisionApprove:
		value = 1
	case in.Verdict.Decision == model.DecisionDeny:
		value = 0.8
	case in.Verdict.Decision == model.DecisionRefer:
		value = 0.4
	}
	if in.Verdict.Decision != "" {
		signals = append(signals, model.Signal{
			Name:  "verdict",
			Value: value,
			Data:  map[string]interface{}{"decision": in.Verdict.Decision},
		})
	}
	return signals
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
