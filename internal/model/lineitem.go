package model

import "strings"

// LineItem is a single invoice position as delivered by extraction.
// It is treated as immutable once extracted
type LineItem struct {
	Description string   `json:"description" yaml:"description"`
	ItemCode    string   `json:"item_code,omitempty" yaml:"item_code,omitempty"`
	Quantity    float64  `json:"quantity" yaml:"quantity"`
	UnitPrice   float64  `json:"unit_price" yaml:"unit_price"`
	TotalPrice  float64  `json:"total_price" yaml:"total_price"`
	ItemType    ItemType `json:"item_type" yaml:"item_type"`
}

// ItemType classifies the nature of an invoice position
type ItemType string

const (
	ItemTypePart  ItemType = "part"  // Physical part or material
	ItemTypeLabor ItemType = "labor" // Workshop labor
	ItemTypeFee   ItemType = "fee"   // Fees, surcharges, disposal
)

// Valid reports whether t is one of the known item types
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypePart, ItemTypeLabor, ItemTypeFee:
		return true
	}
	return false
}

// Invoice is the parsed repair invoice
type Invoice struct {
	LineItems     []LineItem `json:"line_items"`
	TaxRate       float64    `json:"tax_rate"`                 // e.g. 0.081 for 8.1%
	DeclaredTotal *float64   `json:"declared_total,omitempty"` // Total printed on the invoice, if extracted
	Currency      string     `json:"currency,omitempty"`
}

// Sum returns the sum of all line item totals
func (inv Invoice) Sum() float64 {
	total := 0.0
	for _, item := range inv.LineItems {
		total += item.TotalPrice
	}
	return total
}

// NormalizedDescription lowercases and trims the description for pattern matching
func (li LineItem) NormalizedDescription() string {
	return strings.ToLower(strings.TrimSpace(li.Description))
}
