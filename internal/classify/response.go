package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/adjudex/internal/llm"
)

// ErrUnparseable is returned when the oracle answer is not the expected JSON object
var ErrUnparseable = errors.New("unparseable oracle response")

// wireItem is one per-item verdict as sent by the oracle.
// Pointer fields distinguish missing values from zero values
type wireItem struct {
	Index            *int     `json:"index"`
	Covered          *bool    `json:"covered"`
	Category         string   `json:"category"`
	MatchedComponent string   `json:"matched_component"`
	Confidence       *float64 `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
}

type wireResponse struct {
	Items              []json.RawMessage `json:"items"`
	SuggestedDecision  string            `json:"suggested_decision"`
	SuggestedRationale string            `json:"suggested_rationale"`
}

// verdict is a validated per-item answer
type verdict struct {
	Covered    bool
	Category   string
	Component  string
	Confidence float64
	Reasoning  string
}

// batchResponse is a parsed oracle answer for one batch
type batchResponse struct {
	verdicts          map[int]verdict
	problems          map[int]string // per-index reasons an entry was rejected
	suggestedDecision string
	rationale         string
}

// parseBatchResponse decodes an answer for a batch of n items.
// Malformed entries only invalidate the item they refer to
func parseBatchResponse(text string, n int) (*batchResponse, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if wire.Items == nil {
		return nil, fmt.Errorf("%w: no items array", ErrUnparseable)
	}

	resp := &batchResponse{
		verdicts:          make(map[int]verdict),
		problems:          make(map[int]string),
		suggestedDecision: strings.ToUpper(strings.TrimSpace(wire.SuggestedDecision)),
		rationale:         strings.TrimSpace(wire.SuggestedRationale),
	}

	seen := make(map[int]int)
	for _, rawItem := range wire.Items {
		var item wireItem
		if err := json.Unmarshal(rawItem, &item); err != nil {
			// Without a readable index the entry cannot be attributed
			var probe struct {
				Index *int `json:"index"`
			}
			if json.Unmarshal(rawItem, &probe) == nil && probe.Index != nil {
				seen[*probe.Index]++
				resp.reject(*probe.Index, fmt.Sprintf("malformed entry: %v", err))
			}
			continue
		}
		if item.Index == nil {
			continue
		}
		idx := *item.Index
		if idx < 0 || idx >= n {
			continue
		}

		seen[idx]++
		if seen[idx] > 1 {
			resp.reject(idx, "duplicate entries for index")
			continue
		}
		if reason := item.problem(); reason != "" {
			resp.reject(idx, reason)
			continue
		}

		resp.verdicts[idx] = verdict{
			Covered:    *item.Covered,
			Category:   strings.TrimSpace(item.Category),
			Component:  strings.TrimSpace(item.MatchedComponent),
			Confidence: *item.Confidence,
			Reasoning:  strings.TrimSpace(item.Reasoning),
		}
	}

	return resp, nil
}

// lookup returns the verdict for index, or the reason there is none
func (r *batchResponse) lookup(index int) (verdict, string) {
	if v, ok := r.verdicts[index]; ok {
		return v, ""
	}
	if reason, ok := r.problems[index]; ok {
		return verdict{}, reason
	}
	return verdict{}, "no verdict for item"
}

func (r *batchResponse) reject(index int, reason string) {
	delete(r.verdicts, index)
	if _, ok := r.problems[index]; !ok {
		r.problems[index] = reason
	}
}

func (w wireItem) problem() string {
	switch {
	case w.Covered == nil:
		return "missing covered flag"
	case w.Confidence == nil:
		return "missing confidence"
	case math.IsNaN(*w.Confidence) || *w.Confidence < 0 || *w.Confidence > 1:
		return fmt.Sprintf("confidence %v outside [0,1]", *w.Confidence)
	}
	return ""
}

// extractJSONObject strips code fences and any prose around the outermost object
func extractJSONObject(text string) (string, error) {
	s := llm.StripCodeFences(text)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object", ErrUnparseable)
	}
	return s[start : end+1], nil
}
