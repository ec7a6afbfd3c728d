package model

import "time"

// ClaimFacts is the snapshot screening checks are evaluated against.
// Nil fields mean the evidence was not extracted
type ClaimFacts struct {
	PolicyStart         *time.Time         `json:"policy_start,omitempty"`
	PolicyEnd           *time.Time         `json:"policy_end,omitempty"`
	DamageDate          *time.Time         `json:"damage_date,omitempty"`
	ReportedDate        *time.Time         `json:"reported_date,omitempty"`
	Odometer            *int               `json:"odometer,omitempty"`
	MaxOdometer         *int               `json:"max_odometer,omitempty"`
	PolicyVIN           string             `json:"policy_vin,omitempty"`
	VehicleVIN          string             `json:"vehicle_vin,omitempty"`
	ServiceHistory      []ServiceRecord    `json:"service_history,omitempty"`
	FaultCodes          []string           `json:"fault_codes,omitempty"`
	ShopAuthorized      *bool              `json:"shop_authorized,omitempty"`
	ConsequentialDamage *bool              `json:"consequential_damage,omitempty"`
	DocumentQuality     map[string]float64 `json:"document_quality,omitempty"` // document name -> extraction confidence
}

// ServiceRecord is one maintenance entry from the service booklet
type ServiceRecord struct {
	Date     time.Time `json:"date"`
	Odometer *int      `json:"odometer,omitempty"`
}

// ClaimInput is everything needed to adjudicate one claim
type ClaimInput struct {
	ClaimID string         `json:"claim_id"`
	Invoice Invoice        `json:"invoice"`
	Policy  PolicyCoverage `json:"policy"`
	Facts   ClaimFacts     `json:"facts"`
}

// Validate checks that the input is usable at all
func (in ClaimInput) Validate() error {
	if in.ClaimID == "" {
		return ContractViolation("claim_id is required")
	}
	for i, item := range in.Invoice.LineItems {
		if !item.ItemType.Valid() {
			return ContractViolation("line item %d: unknown item_type %q", i, item.ItemType)
		}
	}
	if in.Policy.CoveragePercent < 0 || in.Policy.CoveragePercent > 1 {
		return ContractViolation("coverage_percent %v outside [0,1]", in.Policy.CoveragePercent)
	}
	if in.Invoice.TaxRate < 0 {
		return ContractViolation("negative tax_rate %v", in.Invoice.TaxRate)
	}
	return nil
}
