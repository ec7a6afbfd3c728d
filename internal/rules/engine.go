// Package rules implements the deterministic rule engine that runs before any
// fuzzy or oracle-based classification
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/adjudex/internal/model"
)

// Rule is a compiled classification rule
type Rule struct {
	ID              string
	Status          model.CoverageStatus
	Category        string
	Reason          string
	re              *regexp.Regexp
	itemTypes       map[model.ItemType]bool
	amountCondition string
	amountValue     float64
}

// RuleSet is the compiled, policy-independent part of the engine
type RuleSet struct {
	rules             []Rule
	feeRule           *Rule
	catalog           []model.PartCatalogEntry
	catalogConfidence float64
}

// Engine classifies items against a rule set plus one policy's exclusions
type Engine struct {
	set       *RuleSet
	exclusion []Rule
	policy    model.PolicyCoverage
}

// Compile validates and compiles the configured rules. Invalid patterns are an error
func Compile(cfg model.RulesConfig) (*RuleSet, error) {
	set := &RuleSet{catalogConfidence: cfg.CatalogConfidence}
	if set.catalogConfidence <= 0 || set.catalogConfidence > 1 {
		set.catalogConfidence = 0.95
	}

	seen := make(map[string]bool)
	for _, rc := range cfg.Rules {
		if seen[rc.ID] {
			return nil, fmt.Errorf("duplicate rule id %q", rc.ID)
		}
		seen[rc.ID] = true

		r, err := compileRule(rc)
		if err != nil {
			return nil, err
		}
		set.rules = append(set.rules, r)
	}

	if cfg.FeeRule.ID != "" {
		r, err := compileRule(cfg.FeeRule)
		if err != nil {
			return nil, err
		}
		set.feeRule = &r
	}

	set.catalog = make([]model.PartCatalogEntry, 0, len(cfg.PartCatalog))
	for _, e := range cfg.PartCatalog {
		if strings.TrimSpace(e.Prefix) == "" {
			return nil, fmt.Errorf("part catalog entry for %q has empty prefix", e.Component)
		}
		e.Prefix = normalizeCode(e.Prefix)
		set.catalog = append(set.catalog, e)
	}
	// Longest prefix wins
	sort.SliceStable(set.catalog, func(i, j int) bool {
		return len(set.catalog[i].Prefix) > len(set.catalog[j].Prefix)
	})

	return set, nil
}

func compileRule(rc model.RuleConfig) (Rule, error) {
	if rc.ID == "" {
		return Rule{}, fmt.Errorf("rule without id")
	}
	if !rc.Status.Valid() {
		return Rule{}, fmt.Errorf("rule %s: invalid status %q", rc.ID, rc.Status)
	}

	r := Rule{
		ID:              rc.ID,
		Status:          rc.Status,
		Category:        rc.Category,
		Reason:          rc.Reason,
		amountCondition: rc.AmountCondition,
		amountValue:     rc.AmountValue,
	}

	switch rc.AmountCondition {
	case "", "any", "lt", "le", "eq", "ge", "gt":
	default:
		return Rule{}, fmt.Errorf("rule %s: unknown amount condition %q", rc.ID, rc.AmountCondition)
	}

	if rc.Pattern != "" {
		re, err := regexp.Compile(rc.Pattern)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %s: invalid pattern: %w", rc.ID, err)
		}
		r.re = re
	}

	if len(rc.ItemTypes) > 0 {
		r.itemTypes = make(map[model.ItemType]bool, len(rc.ItemTypes))
		for _, t := range rc.ItemTypes {
			if !t.Valid() {
				return Rule{}, fmt.Errorf("rule %s: invalid item type %q", rc.ID, t)
			}
			r.itemTypes[t] = true
		}
	}

	return r, nil
}

// ExclusionRules compiles the policy's excluded components into rules
func ExclusionRules(policy model.PolicyCoverage) []Rule {
	var out []Rule
	for _, category := range policy.Categories() {
		for _, term := range policy.Excluded[category] {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			out = append(out, Rule{
				ID:       "EXCLUDED:" + category + ":" + term,
				Status:   model.StatusNotCovered,
				Category: category,
				Reason:   fmt.Sprintf("%s is excluded under %s", term, category),
				re:       regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(strings.ToLower(term))),
			})
		}
	}
	return out
}

// ForPolicy binds the rule set to one policy
func (s *RuleSet) ForPolicy(policy model.PolicyCoverage) *Engine {
	return &Engine{
		set:       s,
		exclusion: ExclusionRules(policy),
		policy:    policy,
	}
}

// Classify returns a RULE coverage for the item when a rule or the part catalog
// decides it. The second return value is false when nothing matched
func (e *Engine) Classify(index int, item model.LineItem) (model.LineItemCoverage, bool) {
	if r, ok := e.Match(item); ok {
		c := model.NewCoverage(index, item)
		c.Apply(model.TraceStep{
			Source:     model.SourceRule,
			Verdict:    r.Status,
			Method:     model.MethodRule,
			Confidence: 1.0,
			Category:   r.Category,
			Detail:     "rule " + r.ID + ": " + r.Reason,
		})
		c.Reasoning = r.Reason
		return c, true
	}

	entry, ok := e.set.CatalogLookup(item)
	if !ok {
		return model.LineItemCoverage{}, false
	}

	var status model.CoverageStatus
	switch {
	case e.policy.IsExcluded(entry.Category, entry.Component):
		status = model.StatusNotCovered
	case e.policy.IsCovered(entry.Category, entry.Component):
		status = model.StatusCovered
	default:
		return model.LineItemCoverage{}, false
	}

	c := model.NewCoverage(index, item)
	c.Apply(model.TraceStep{
		Source:     model.SourceRule,
		Verdict:    status,
		Method:     model.MethodPartNumber,
		Confidence: e.set.catalogConfidence,
		Category:   entry.Category,
		Component:  entry.Component,
		Detail:     fmt.Sprintf("part number %s matches catalog prefix %s", item.ItemCode, entry.Prefix),
	})
	c.Reasoning = fmt.Sprintf("catalog: %s / %s", entry.Category, entry.Component)
	return c, true
}

// Match returns the first matching rule: policy exclusions, configured rules, then the fee rule
func (e *Engine) Match(item model.LineItem) (Rule, bool) {
	desc := item.NormalizedDescription()
	for _, r := range e.exclusion {
		if r.matches(item, desc) {
			return r, true
		}
	}
	for _, r := range e.set.rules {
		if r.matches(item, desc) {
			return r, true
		}
	}
	if e.set.feeRule != nil && item.ItemType == model.ItemTypeFee && e.set.feeRule.matches(item, desc) {
		return *e.set.feeRule, true
	}
	return Rule{}, false
}

// CatalogLookup finds the catalog entry for the item's part number, if any
func (s *RuleSet) CatalogLookup(item model.LineItem) (model.PartCatalogEntry, bool) {
	code := normalizeCode(item.ItemCode)
	if code == "" {
		return model.PartCatalogEntry{}, false
	}
	for _, e := range s.catalog {
		if strings.HasPrefix(code, e.Prefix) {
			return e, true
		}
	}
	return model.PartCatalogEntry{}, false
}

func (r Rule) matches(item model.LineItem, desc string) bool {
	if r.itemTypes != nil && !r.itemTypes[item.ItemType] {
		return false
	}
	if r.re != nil && !r.re.MatchString(desc) {
		return false
	}
	return r.matchesAmount(item.TotalPrice)
}

func (r Rule) matchesAmount(amount float64) bool {
	switch r.amountCondition {
	case "", "any":
		return true
	case "lt":
		return amount < r.amountValue
	case "le":
		return amount <= r.amountValue
	case "eq":
		return amount == r.amountValue
	case "ge":
		return amount >= r.amountValue
	case "gt":
		return amount > r.amountValue
	}
	return false
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), " ", ""))
}
