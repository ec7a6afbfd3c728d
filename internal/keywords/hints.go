// Package keywords generates advisory category/component hints from a
// multilingual vocabulary. Hints never decide coverage on their own
package keywords

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/adjudex/internal/model"
)

// MatchKind describes how a vocabulary term matched
type MatchKind string

const (
	MatchExactPhrase MatchKind = "exact_phrase"
	MatchExactToken  MatchKind = "exact_token"
	MatchCompound    MatchKind = "compound"
	MatchCatalog     MatchKind = "catalog"
)

// Match confidences per kind
const (
	ExactPhraseConfidence = 0.95
	ExactTokenConfidence  = 0.90
	CompoundConfidence    = 0.70
)

// Hint is an advisory category/component suggestion for one item
type Hint struct {
	Category   string    `json:"category"`
	Component  string    `json:"component"`
	Confidence float64   `json:"confidence"`
	Term       string    `json:"term"`
	Kind       MatchKind `json:"kind"`
}

// String renders the hint for prompts and trace details
func (h *Hint) String() string {
	return fmt.Sprintf("%s/%s (term %q, %s, %.2f)", h.Category, h.Component, h.Term, h.Kind, h.Confidence)
}

type vocabTerm struct {
	category  string
	component string
	raw       string
	tokens    []string
	order     int
}

// Generator matches item descriptions against a vocabulary table
type Generator struct {
	version string
	minLen  int
	terms   []vocabTerm
}

// NewGenerator compiles the vocabulary
func NewGenerator(cfg model.VocabularyConfig) (*Generator, error) {
	g := &Generator{
		version: cfg.Version,
		minLen:  cfg.MinTermLength,
	}
	if g.minLen <= 0 {
		g.minLen = 4
	}

	order := 0
	for _, e := range cfg.Entries {
		if e.Category == "" || e.Component == "" {
			return nil, fmt.Errorf("vocabulary entry %v: category and component are required", e.Terms)
		}
		for _, term := range e.Terms {
			tokens := Tokens(Normalize(term))
			if len(tokens) == 0 {
				return nil, fmt.Errorf("vocabulary entry %s/%s: empty term", e.Category, e.Component)
			}
			g.terms = append(g.terms, vocabTerm{
				category:  e.Category,
				component: e.Component,
				raw:       term,
				tokens:    tokens,
				order:     order,
			})
			order++
		}
	}
	return g, nil
}

// Version returns the vocabulary version
func (g *Generator) Version() string {
	return g.version
}

// GenerateHints returns one optional hint per item, aligned by index
func (g *Generator) GenerateHints(items []model.LineItem) []*Hint {
	hints := make([]*Hint, len(items))
	for i, item := range items {
		hints[i] = g.Hint(item.Description)
	}
	return hints
}

// Hint returns the best vocabulary match for a description, or nil
func (g *Generator) Hint(description string) *Hint {
	tokens := Tokens(Normalize(description))
	if len(tokens) == 0 {
		return nil
	}

	var best *Hint
	bestOrder := 0
	for _, term := range g.terms {
		kind, conf, ok := g.match(tokens, term)
		if !ok {
			continue
		}
		candidate := &Hint{
			Category:   term.category,
			Component:  term.component,
			Confidence: conf,
			Term:       term.raw,
			Kind:       kind,
		}
		if best == nil || better(candidate, term.order, best, bestOrder) {
			best = candidate
			bestOrder = term.order
		}
	}
	return best
}

func better(a *Hint, aOrder int, b *Hint, bOrder int) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if la, lb := utf8.RuneCountInString(a.Term), utf8.RuneCountInString(b.Term); la != lb {
		return la > lb
	}
	return aOrder < bOrder
}

func (g *Generator) match(tokens []string, term vocabTerm) (MatchKind, float64, bool) {
	if len(term.tokens) > 1 {
		if containsSequence(tokens, term.tokens) {
			return MatchExactPhrase, ExactPhraseConfidence, true
		}
		return "", 0, false
	}

	word := term.tokens[0]
	for _, tok := range tokens {
		if tok == word {
			return MatchExactToken, ExactTokenConfidence, true
		}
	}

	// Compound containment only between long enough words
	if utf8.RuneCountInString(word) < g.minLen {
		return "", 0, false
	}
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < g.minLen {
			continue
		}
		if strings.Contains(tok, word) || strings.Contains(word, tok) {
			return MatchCompound, CompoundConfidence, true
		}
	}
	return "", 0, false
}

func containsSequence(tokens, seq []string) bool {
	for i := 0; i+len(seq) <= len(tokens); i++ {
		match := true
		for j := range seq {
			if tokens[i+j] != seq[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// FromCatalog converts a part-number catalog entry into a hint
func FromCatalog(entry model.PartCatalogEntry, confidence float64) *Hint {
	return &Hint{
		Category:   entry.Category,
		Component:  entry.Component,
		Confidence: confidence,
		Term:       entry.Prefix,
		Kind:       MatchCatalog,
	}
}
