package model

import "time"

// ConfidenceBand buckets the composite confidence score
type ConfidenceBand string

const (
	BandHigh     ConfidenceBand = "HIGH"
	BandModerate ConfidenceBand = "MODERATE"
	BandLow      ConfidenceBand = "LOW"
)

// Signal is one normalized input to a confidence component
type Signal struct {
	Name  string                 `json:"name"`
	Value float64                `json:"value"` // normalized to [0,1]
	Data  map[string]interface{} `json:"data,omitempty"`
}

// ComponentScore is one weighted component of the confidence summary
type ComponentScore struct {
	Name    string   `json:"name"`
	Score   float64  `json:"score"`
	Weight  float64  `json:"weight"` // effective weight after redistribution
	Present bool     `json:"present"`
	Signals []Signal `json:"signals,omitempty"`
}

// ConfidenceSummary is the advisory confidence of the whole decision
type ConfidenceSummary struct {
	Composite  float64          `json:"composite_score"`
	Band       ConfidenceBand   `json:"band"`
	Components []ComponentScore `json:"components"`
	Explain    string           `json:"explain,omitempty"`
}

// Dossier is the immutable, versioned record of one adjudication run
type Dossier struct {
	ID                string             `json:"id"`
	ClaimID           string             `json:"claim_id"`
	Version           int                `json:"version"`
	CreatedAt         time.Time          `json:"created_at"`
	ConfigVersion     string             `json:"config_version"`
	VocabularyVersion string             `json:"vocabulary_version,omitempty"`
	Items             []LineItem         `json:"items"`
	Coverages         []LineItemCoverage `json:"coverages"`
	PrimaryRepair     *PrimaryRepair     `json:"primary_repair,omitempty"`
	Screening         ScreeningResult    `json:"screening"`
	Payout            PayoutBreakdown    `json:"payout"`
	Verdict           ClaimVerdict       `json:"verdict"`
	Advisory          *AdvisoryOpinion   `json:"advisory,omitempty"`
	Confidence        ConfidenceSummary  `json:"confidence"`
	Duration          time.Duration      `json:"duration_ns"`
}
