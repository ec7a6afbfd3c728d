package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/adjudex/internal/model"
)

const systemPrompt = `You are a warranty claims assessor. For every invoice line item decide
whether the repair is covered by the policy coverage matrix you are given.

Rules:
- Only components listed as covered for a category are covered.
- Components listed as excluded are never covered.
- Labor is covered only when it is needed to repair a covered component.
- When the description is too vague to identify a component, answer with low confidence.
- Hints are suggestions from a keyword table and may be wrong.

Answer with a single JSON object and nothing else:
{"items":[{"index":0,"covered":true,"category":"engine","matched_component":"cylinder head","confidence":0.9,"reasoning":"short reason"}],
 "suggested_decision":"APPROVE|DENY|REFER","suggested_rationale":"one sentence"}
Return exactly one entry per item index. Confidence is a number between 0 and 1.`

const primarySystemPrompt = `You are a warranty claims assessor. Identify the principal repair of the
invoice: the single part whose failure caused the claim. Other parts and labor are usually
consequences or ancillary work.

Answer with a single JSON object and nothing else:
{"index":3,"confidence":0.9,"reasoning":"short reason"}
Use "index":null when no part can be identified.`

type promptHint struct {
	Category  string `json:"category"`
	Component string `json:"component"`
	Term      string `json:"term"`
}

type promptItem struct {
	Index       int         `json:"index"`
	Description string      `json:"description"`
	ItemType    string      `json:"item_type"`
	ItemCode    string      `json:"item_code,omitempty"`
	Quantity    float64     `json:"quantity,omitempty"`
	TotalPrice  float64     `json:"total_price"`
	Hint        *promptHint `json:"hint,omitempty"`
}

type promptPolicy struct {
	Covered  map[string][]string `json:"covered"`
	Excluded map[string][]string `json:"excluded,omitempty"`
}

// buildBatchPrompt renders the coverage matrix and the batch items.
// Item indices are positions within the batch. Output is deterministic so
// identical batches hit the cache
func buildBatchPrompt(items []Item, policy model.PolicyCoverage) string {
	list := make([]promptItem, len(items))
	for i, it := range items {
		list[i] = promptItem{
			Index:       i,
			Description: it.Item.Description,
			ItemType:    string(it.Item.ItemType),
			ItemCode:    it.Item.ItemCode,
			Quantity:    it.Item.Quantity,
			TotalPrice:  it.Item.TotalPrice,
		}
		if it.Hint != nil {
			list[i].Hint = &promptHint{
				Category:  it.Hint.Category,
				Component: it.Hint.Component,
				Term:      it.Hint.Term,
			}
		}
	}

	var b strings.Builder
	b.WriteString("POLICY COVERAGE MATRIX:\n")
	b.WriteString(mustJSON(promptPolicy{Covered: policy.Covered, Excluded: policy.Excluded}))
	b.WriteString("\n\nINVOICE ITEMS:\n")
	b.WriteString(mustJSON(list))
	fmt.Fprintf(&b, "\n\nClassify all %d items.", len(items))
	return b.String()
}

// buildPrimaryPrompt renders the whole invoice with current coverage statuses
func buildPrimaryPrompt(items []model.LineItem, coverages []model.LineItemCoverage) string {
	type entry struct {
		Index       int     `json:"index"`
		Description string  `json:"description"`
		ItemType    string  `json:"item_type"`
		ItemCode    string  `json:"item_code,omitempty"`
		TotalPrice  float64 `json:"total_price"`
		Status      string  `json:"coverage_status,omitempty"`
		Component   string  `json:"matched_component,omitempty"`
	}

	list := make([]entry, len(items))
	for i, item := range items {
		list[i] = entry{
			Index:       i,
			Description: item.Description,
			ItemType:    string(item.ItemType),
			ItemCode:    item.ItemCode,
			TotalPrice:  item.TotalPrice,
		}
		if i < len(coverages) {
			list[i].Status = string(coverages[i].Status)
			list[i].Component = coverages[i].Component
		}
	}

	return "INVOICE ITEMS:\n" + mustJSON(list)
}

// mustJSON marshals values that are always encodable
func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
