package model

import (
	"math"
	"time"
)

// CoverageStatus is the per-item coverage determination
type CoverageStatus string

const (
	StatusCovered      CoverageStatus = "COVERED"
	StatusNotCovered   CoverageStatus = "NOT_COVERED"
	StatusReviewNeeded CoverageStatus = "REVIEW_NEEDED"
)

// Valid reports whether s is a known status
func (s CoverageStatus) Valid() bool {
	switch s {
	case StatusCovered, StatusNotCovered, StatusReviewNeeded:
		return true
	}
	return false
}

// MatchMethod records how the current status was reached
type MatchMethod string

const (
	MethodRule        MatchMethod = "RULE"
	MethodKeywordHint MatchMethod = "KEYWORD_HINT"
	MethodReasoning   MatchMethod = "REASONING"
	MethodPartNumber  MatchMethod = "PART_NUMBER"
	MethodPromotion   MatchMethod = "PROMOTION"
)

// DecisionSource tags the component that produced a trace step
type DecisionSource string

const (
	SourceRule        DecisionSource = "RULE"
	SourceKeywordHint DecisionSource = "KEYWORD_HINT"
	SourceReasoning   DecisionSource = "REASONING"
	SourcePromotion   DecisionSource = "PROMOTION"
	SourceValidation  DecisionSource = "VALIDATION"
)

// amountTolerance is the tolerance used when comparing money sums
const amountTolerance = 0.005

// TraceStep is one entry of the append-only decision trace
type TraceStep struct {
	Source     DecisionSource `json:"source"`
	Verdict    CoverageStatus `json:"verdict"`
	Method     MatchMethod    `json:"match_method,omitempty"`
	Confidence float64        `json:"confidence"`
	Category   string         `json:"category,omitempty"`
	Component  string         `json:"component,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	Fallback   bool           `json:"fallback,omitempty"` // Review routing without a verdict behind it, e.g. oracle failure
	At         time.Time      `json:"at"`
}

// LineItemCoverage is the coverage determination for one line item
type LineItemCoverage struct {
	Index            int            `json:"index"`
	Description      string         `json:"description"`
	ItemType         ItemType       `json:"item_type"`
	TotalPrice       float64        `json:"total_price"`
	Status           CoverageStatus `json:"coverage_status"`
	Method           MatchMethod    `json:"match_method"`
	Confidence       float64        `json:"match_confidence"`
	Category         string         `json:"category,omitempty"`
	Component        string         `json:"matched_component,omitempty"`
	Reasoning        string         `json:"reasoning,omitempty"`
	CoveredAmount    float64        `json:"covered_amount"`
	NotCoveredAmount float64        `json:"not_covered_amount"`
	LinkedTo         *int           `json:"linked_to,omitempty"` // Index of the covered part a promoted item was linked to
	Trace            []TraceStep    `json:"decision_trace"`
}

// NewCoverage creates an unresolved coverage record for the item at index
func NewCoverage(index int, item LineItem) LineItemCoverage {
	return LineItemCoverage{
		Index:       index,
		Description: item.Description,
		ItemType:    item.ItemType,
		TotalPrice:  item.TotalPrice,
	}
}

// Apply records a trace step and moves the coverage to the step's verdict.
// The trace is only ever appended to
func (c *LineItemCoverage) Apply(step TraceStep) {
	if step.At.IsZero() {
		step.At = time.Now().UTC()
	}
	c.Status = step.Verdict
	if step.Method != "" {
		c.Method = step.Method
	}
	c.Confidence = step.Confidence
	if step.Category != "" {
		c.Category = step.Category
	}
	if step.Component != "" {
		c.Component = step.Component
	}
	c.setAmounts()
	c.Trace = append(c.Trace, step)
}

// Resolved reports whether a stage has already decided this item
func (c *LineItemCoverage) Resolved() bool {
	return len(c.Trace) > 0
}

// LastStep returns the most recent trace step, if any
func (c *LineItemCoverage) LastStep() (TraceStep, bool) {
	if len(c.Trace) == 0 {
		return TraceStep{}, false
	}
	return c.Trace[len(c.Trace)-1], true
}

// ClassificationSource returns the source of the latest step that was not a validation step
func (c *LineItemCoverage) ClassificationSource() DecisionSource {
	for i := len(c.Trace) - 1; i >= 0; i-- {
		if c.Trace[i].Source != SourceValidation {
			return c.Trace[i].Source
		}
	}
	return ""
}

// DecidedByOracle reports whether the latest classification step is a real
// reasoning verdict. Fallback routing to review does not count
func (c *LineItemCoverage) DecidedByOracle() bool {
	for i := len(c.Trace) - 1; i >= 0; i-- {
		step := c.Trace[i]
		if step.Source == SourceValidation {
			continue
		}
		return step.Source == SourceReasoning && !step.Fallback
	}
	return false
}

// Verify checks the invariants and, when they hold, appends a VALIDATION
// step restating the determination. Amounts are left as they are
func (c *LineItemCoverage) Verify(detail string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	step := c.ValidationStep(detail)
	step.At = time.Now().UTC()
	c.Trace = append(c.Trace, step)
	return nil
}

// ValidationStep builds a VALIDATION step that restates the current determination
func (c *LineItemCoverage) ValidationStep(detail string) TraceStep {
	return TraceStep{
		Source:     SourceValidation,
		Verdict:    c.Status,
		Method:     c.Method,
		Confidence: c.Confidence,
		Category:   c.Category,
		Component:  c.Component,
		Detail:     detail,
	}
}

func (c *LineItemCoverage) setAmounts() {
	if c.Status == StatusCovered {
		c.CoveredAmount = c.TotalPrice
		c.NotCoveredAmount = 0
		return
	}
	c.CoveredAmount = 0
	c.NotCoveredAmount = c.TotalPrice
}

// Validate checks the coverage invariants and returns a ContractViolation error on failure
func (c *LineItemCoverage) Validate() error {
	if !c.Status.Valid() {
		return ContractViolation("item %d: invalid coverage status %q", c.Index, c.Status)
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return ContractViolation("item %d: match confidence %v outside [0,1]", c.Index, c.Confidence)
	}
	if math.Abs(c.CoveredAmount+c.NotCoveredAmount-c.TotalPrice) > amountTolerance {
		return ContractViolation("item %d: covered %.2f + not covered %.2f != total %.2f",
			c.Index, c.CoveredAmount, c.NotCoveredAmount, c.TotalPrice)
	}
	if c.Status == StatusCovered && c.TotalPrice != 0 && c.CoveredAmount <= 0 {
		return ContractViolation("item %d: COVERED with non-positive covered amount %.2f", c.Index, c.CoveredAmount)
	}
	if c.Status == StatusNotCovered && c.CoveredAmount != 0 {
		return ContractViolation("item %d: NOT_COVERED with covered amount %.2f", c.Index, c.CoveredAmount)
	}
	last, ok := c.LastStep()
	if !ok {
		return ContractViolation("item %d: empty decision trace", c.Index)
	}
	if last.Verdict != c.Status {
		return ContractViolation("item %d: last trace verdict %s != status %s", c.Index, last.Verdict, c.Status)
	}
	return nil
}

// CoverageTotals summarizes a coverage set
type CoverageTotals struct {
	Covered      int     `json:"covered"`
	NotCovered   int     `json:"not_covered"`
	ReviewNeeded int     `json:"review_needed"`
	GrossCovered float64 `json:"gross_covered"`
	ReviewAmount float64 `json:"review_amount"`
	Total        float64 `json:"total"`
}

// Totals counts statuses and sums amounts over coverages
func Totals(coverages []LineItemCoverage) CoverageTotals {
	var t CoverageTotals
	for _, c := range coverages {
		t.Total += c.TotalPrice
		switch c.Status {
		case StatusCovered:
			t.Covered++
			t.GrossCovered += c.CoveredAmount
		case StatusNotCovered:
			t.NotCovered++
		case StatusReviewNeeded:
			t.ReviewNeeded++
			t.ReviewAmount += c.TotalPrice
		}
	}
	return t
}
