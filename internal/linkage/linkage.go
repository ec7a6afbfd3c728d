// Package linkage resolves the primary repair of a claim and promotes labor
// and ancillary items that belong to a covered repair
package linkage

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/adjudex/internal/keywords"
	"github.com/ppiankov/adjudex/internal/model"
)

// PrimaryIdentifier names the principal repair of an invoice
type PrimaryIdentifier interface {
	IdentifyPrimaryRepair(ctx context.Context, items []model.LineItem, coverages []model.LineItemCoverage) (*model.PrimaryRepair, error)
}

// Linker applies the labor linkage rules
type Linker struct {
	ancillary  []*regexp.Regexp
	nonCovered []*regexp.Regexp
	minToken   int
	logger     *slog.Logger
}

// New compiles the linkage patterns
func New(cfg model.LinkageConfig, logger *slog.Logger) (*Linker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Linker{minToken: cfg.MinTokenLength, logger: logger}
	if l.minToken <= 0 {
		l.minToken = 4
	}

	var err error
	if l.ancillary, err = compileAll(cfg.AncillaryPatterns); err != nil {
		return nil, fmt.Errorf("ancillary pattern: %w", err)
	}
	if l.nonCovered, err = compileAll(cfg.NonCoveredLaborPatterns); err != nil {
		return nil, fmt.Errorf("non-covered labor pattern: %w", err)
	}
	return l, nil
}

// ResolvePrimary asks identifier for the primary repair and falls back to the
// highest-priced COVERED part when the answer is missing or not a COVERED part.
// Returns nil when no COVERED part exists
func (l *Linker) ResolvePrimary(ctx context.Context, identifier PrimaryIdentifier, items []model.LineItem, coverages []model.LineItemCoverage) *model.PrimaryRepair {
	if identifier != nil {
		primary, err := identifier.IdentifyPrimaryRepair(ctx, items, coverages)
		switch {
		case err != nil:
			l.logger.Warn("Primary repair lookup failed, using fallback", "error", err)
		case primary == nil:
			l.logger.Debug("Oracle named no primary repair, using fallback")
		case !isCoveredPart(coverages, primary.Index):
			l.logger.Debug("Oracle primary repair is not a covered part, using fallback", "index", primary.Index)
		default:
			return primary
		}
	}
	return FallbackPrimary(coverages)
}

// FallbackPrimary returns the highest-priced COVERED part, ties going to the lowest index
func FallbackPrimary(coverages []model.LineItemCoverage) *model.PrimaryRepair {
	best := -1
	for i, c := range coverages {
		if c.Status != model.StatusCovered || c.ItemType != model.ItemTypePart {
			continue
		}
		if best < 0 || c.TotalPrice > coverages[best].TotalPrice {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return &model.PrimaryRepair{
		Index:      coverages[best].Index,
		Method:     model.PrimaryByFallback,
		Confidence: coverages[best].Confidence,
		Reason:     fmt.Sprintf("highest-priced covered part %q", coverages[best].Description),
	}
}

// Promote moves qualifying labor and ancillary items to COVERED in place and
// returns the promoted indices. Targets are taken from the coverages as they
// were before this call, so running Promote again changes nothing
func (l *Linker) Promote(coverages []model.LineItemCoverage, primary *model.PrimaryRepair, policy model.PolicyCoverage) []int {
	targets := l.targets(coverages)
	excluded := excludedTerms(coverages, policy)

	var primaryTarget *target
	if primary != nil {
		for i := range targets {
			if targets[i].index == primary.Index {
				primaryTarget = &targets[i]
				break
			}
		}
	}

	var promoted []int
	for i := range coverages {
		c := &coverages[i]
		isLabor := c.ItemType == model.ItemTypeLabor
		isAncillary := matchesAny(l.ancillary, c.Description)
		if !isLabor && !isAncillary {
			continue
		}
		if c.Status != model.StatusNotCovered && c.Status != model.StatusReviewNeeded {
			continue
		}
		if !c.DecidedByOracle() {
			continue
		}
		if matchesAny(l.nonCovered, c.Description) {
			continue
		}

		norm := keywords.Normalize(c.Description)
		if term, ok := referencesAny(norm, excluded); ok {
			l.logger.Debug("Item references excluded part, not promoted", "index", c.Index, "term", term)
			continue
		}

		t := l.findTarget(norm, targets, primaryTarget)
		if t == nil && isLabor && !isAncillary {
			t = primaryTarget
		}
		if t == nil {
			continue
		}

		linked := t.index
		c.LinkedTo = &linked
		c.Apply(model.TraceStep{
			Source:     model.SourcePromotion,
			Verdict:    model.StatusCovered,
			Method:     model.MethodPromotion,
			Confidence: t.confidence,
			Category:   t.category,
			Component:  t.component,
			Detail:     fmt.Sprintf("linked to covered item %d %q", t.index, t.description),
		})
		promoted = append(promoted, c.Index)
	}
	return promoted
}

// target is a COVERED part an ancillary item can be linked to
type target struct {
	index       int
	description string
	category    string
	component   string
	confidence  float64
	phrases     []string // normalized component names and significant tokens
}

func (l *Linker) targets(coverages []model.LineItemCoverage) []target {
	var out []target
	for _, c := range coverages {
		if c.Status != model.StatusCovered || c.ItemType != model.ItemTypePart {
			continue
		}
		if c.ClassificationSource() == model.SourcePromotion {
			continue
		}
		t := target{
			index:       c.Index,
			description: c.Description,
			category:    c.Category,
			component:   c.Component,
			confidence:  c.Confidence,
		}
		if comp := keywords.Normalize(c.Component); comp != "" {
			t.phrases = append(t.phrases, comp)
		}
		for _, tok := range keywords.Tokens(keywords.Normalize(c.Description)) {
			if l.significant(tok) {
				t.phrases = append(t.phrases, tok)
			}
		}
		out = append(out, t)
	}
	return out
}

// findTarget prefers the primary repair when several targets match
func (l *Linker) findTarget(norm string, targets []target, primary *target) *target {
	if primary != nil && mentions(norm, primary.phrases) {
		return primary
	}
	for i := range targets {
		if mentions(norm, targets[i].phrases) {
			return &targets[i]
		}
	}
	return nil
}

func (l *Linker) significant(tok string) bool {
	if utf8.RuneCountInString(tok) < l.minToken {
		return false
	}
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// excludedTerms are the policy exclusions plus components a rule marked NOT_COVERED
func excludedTerms(coverages []model.LineItemCoverage, policy model.PolicyCoverage) []string {
	var out []string
	for _, term := range policy.ExcludedTerms() {
		if n := keywords.Normalize(term); n != "" {
			out = append(out, n)
		}
	}
	for _, c := range coverages {
		if c.Status == model.StatusNotCovered && c.ClassificationSource() == model.SourceRule && c.Component != "" {
			out = append(out, keywords.Normalize(c.Component))
		}
	}
	return out
}

func mentions(norm string, phrases []string) bool {
	if len(phrases) == 0 {
		return false
	}
	tokens := keywords.Tokens(norm)
	for _, p := range phrases {
		if strings.ContainsAny(p, " -/") {
			if strings.Contains(norm, p) {
				return true
			}
			continue
		}
		for _, tok := range tokens {
			if tok == p {
				return true
			}
		}
	}
	return false
}

// referencesAny reports the first term that starts a word of norm. A term
// inside a longer word ("oil" in "boiler") does not count, matching the
// policy exclusion rules
func referencesAny(norm string, terms []string) (string, bool) {
	for _, term := range terms {
		if startsWord(norm, term) {
			return term, true
		}
	}
	return "", false
}

func startsWord(s, term string) bool {
	if term == "" {
		return false
	}
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], term)
		if i < 0 {
			return false
		}
		at := offset + i
		if at == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(s[:at])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[at:])
		offset = at + size
	}
	return false
}

func isCoveredPart(coverages []model.LineItemCoverage, index int) bool {
	for _, c := range coverages {
		if c.Index == index {
			return c.Status == model.StatusCovered && c.ItemType == model.ItemTypePart
		}
	}
	return false
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
