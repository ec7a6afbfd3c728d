package model

import (
	"sort"
	"strings"
)

// PolicyCoverage holds the coverage rules of one policy
type PolicyCoverage struct {
	PolicyID        string              `json:"policy_id" yaml:"policy_id"`
	Covered         map[string][]string `json:"covered_components" yaml:"covered_components"`
	Excluded        map[string][]string `json:"excluded_components" yaml:"excluded_components"`
	CoveragePercent float64             `json:"coverage_percent" yaml:"coverage_percent"` // 0..1
	CoverageScale   []CoverageTier      `json:"coverage_scale,omitempty" yaml:"coverage_scale,omitempty"`
	Deductible      DeductibleRule      `json:"deductible" yaml:"deductible"`
	CoverageCap     *float64            `json:"coverage_cap,omitempty" yaml:"coverage_cap,omitempty"`
}

// DeductibleRule is max(Percent × subtotal, Floor)
type DeductibleRule struct {
	Percent float64 `json:"percent" yaml:"percent"`
	Floor   float64 `json:"floor" yaml:"floor"`
}

// CoverageTier lowers the coverage percent from a given odometer reading on
type CoverageTier struct {
	MinOdometer int     `json:"min_odometer" yaml:"min_odometer"`
	Percent     float64 `json:"percent" yaml:"percent"`
}

// Categories returns the sorted union of covered and excluded categories
func (p PolicyCoverage) Categories() []string {
	seen := make(map[string]bool)
	for c := range p.Covered {
		seen[c] = true
	}
	for c := range p.Excluded {
		seen[c] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// HasCategory reports whether the policy knows the category at all
func (p PolicyCoverage) HasCategory(category string) bool {
	_, ok := p.lookup(p.Covered, category)
	if ok {
		return true
	}
	_, ok = p.lookup(p.Excluded, category)
	return ok
}

// CoversCategory reports whether the policy lists covered components for category
func (p PolicyCoverage) CoversCategory(category string) bool {
	list, ok := p.lookup(p.Covered, category)
	return ok && len(list) > 0
}

// IsCovered reports whether component is listed as covered in category
func (p PolicyCoverage) IsCovered(category, component string) bool {
	list, _ := p.lookup(p.Covered, category)
	return containsFold(list, component)
}

// IsExcluded reports whether component is listed as excluded in category.
// An empty category searches all categories
func (p PolicyCoverage) IsExcluded(category, component string) bool {
	if category == "" {
		for _, list := range p.Excluded {
			if containsFold(list, component) {
				return true
			}
		}
		return false
	}
	list, _ := p.lookup(p.Excluded, category)
	return containsFold(list, component)
}

// ExcludedTerms returns every excluded component name across categories
func (p PolicyCoverage) ExcludedTerms() []string {
	var out []string
	for _, cat := range p.Categories() {
		list, _ := p.lookup(p.Excluded, cat)
		out = append(out, list...)
	}
	return out
}

// EffectivePercent returns the coverage percent for the given odometer reading.
// A nil odometer uses the base percent
func (p PolicyCoverage) EffectivePercent(odometer *int) float64 {
	if odometer == nil || len(p.CoverageScale) == 0 {
		return p.CoveragePercent
	}
	percent := p.CoveragePercent
	best := -1
	for _, tier := range p.CoverageScale {
		if tier.MinOdometer <= *odometer && tier.MinOdometer > best {
			best = tier.MinOdometer
			percent = tier.Percent
		}
	}
	return percent
}

func (p PolicyCoverage) lookup(m map[string][]string, category string) ([]string, bool) {
	if list, ok := m[category]; ok {
		return list, true
	}
	for k, list := range m {
		if strings.EqualFold(k, category) {
			return list, true
		}
	}
	return nil, false
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
