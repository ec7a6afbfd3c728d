package model

// Decision is the final claim verdict
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionDeny    Decision = "DENY"
	DecisionRefer   Decision = "REFER"
)

// RefKind says what a rationale reference points at
type RefKind string

const (
	RefCheck  RefKind = "check"
	RefItem   RefKind = "item"
	RefPayout RefKind = "payout"
)

// RationaleRef names a check or item that drove the verdict
type RationaleRef struct {
	Kind   RefKind `json:"kind"`
	ID     string  `json:"id"`
	Detail string  `json:"detail,omitempty"`
}

// ClaimVerdict is the authoritative outcome produced by the decision engine only
type ClaimVerdict struct {
	Decision  Decision       `json:"decision"`
	Payout    float64        `json:"payout"`
	Rationale []RationaleRef `json:"rationale"`
}

// AdvisoryOpinion is commentary suggested by the reasoning oracle.
// It never feeds into ClaimVerdict
type AdvisoryOpinion struct {
	SuggestedDecision string   `json:"suggested_decision,omitempty"`
	Rationale         []string `json:"rationale,omitempty"`
	Provider          string   `json:"provider,omitempty"`
}

// Empty reports whether the oracle offered no opinion
func (a AdvisoryOpinion) Empty() bool {
	return a.SuggestedDecision == "" && len(a.Rationale) == 0
}

// PrimaryRepairMethod records how the primary repair was identified
type PrimaryRepairMethod string

const (
	PrimaryByReasoning PrimaryRepairMethod = "REASONING"
	PrimaryByFallback  PrimaryRepairMethod = "FALLBACK"
)

// PrimaryRepair is the principal repaired part of the claim
type PrimaryRepair struct {
	Index      int                 `json:"index"`
	Method     PrimaryRepairMethod `json:"method"`
	Confidence float64             `json:"confidence"`
	Reason     string              `json:"reason,omitempty"`
}

// PayoutBreakdown shows every step of the payout computation
type PayoutBreakdown struct {
	GrossCovered    float64 `json:"gross_covered"`
	Capped          float64 `json:"capped"`
	CapApplied      bool    `json:"cap_applied"`
	CoveragePercent float64 `json:"coverage_percent"`
	AfterRate       float64 `json:"after_rate"`
	TaxRate         float64 `json:"tax_rate"`
	TaxAmount       float64 `json:"tax_amount"`
	Subtotal        float64 `json:"subtotal"`
	Deductible      float64 `json:"deductible"`
	Payout          float64 `json:"payout"`
}
