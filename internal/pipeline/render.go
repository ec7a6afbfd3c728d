package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/adjudex/internal/model"
)

// Renderer writes dossiers as JSON, Markdown and a terminal summary
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer whose summaries go to out
func NewRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{out: out}
}

// RenderJSON writes the dossier as indented JSON to path
func (r *Renderer) RenderJSON(d *model.Dossier, path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dossier: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes a human-readable dossier to path
func (r *Renderer) RenderMarkdown(d *model.Dossier, path string) error {
	return writeFile(path, []byte(Markdown(d)))
}

// Markdown renders the dossier as a Markdown document
func Markdown(d *model.Dossier) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Claim %s\n\n", d.ClaimID)
	fmt.Fprintf(&b, "- **Decision:** %s\n", d.Verdict.Decision)
	fmt.Fprintf(&b, "- **Payout:** %.2f\n", d.Verdict.Payout)
	fmt.Fprintf(&b, "- **Confidence:** %.2f (%s)\n", d.Confidence.Composite, d.Confidence.Band)
	fmt.Fprintf(&b, "- **Dossier:** %s v%d, config %s\n\n", d.ID, d.Version, d.ConfigVersion)

	if len(d.Verdict.Rationale) > 0 {
		b.WriteString("## Rationale\n\n")
		for _, ref := range d.Verdict.Rationale {
			fmt.Fprintf(&b, "- %s `%s`", ref.Kind, ref.ID)
			if ref.Detail != "" {
				fmt.Fprintf(&b, ": %s", ref.Detail)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Line items\n\n")
	b.WriteString("| # | Description | Type | Total | Status | Method | Confidence |\n")
	b.WriteString("|---|---|---|---:|---|---|---:|\n")
	for _, c := range d.Coverages {
		marker := ""
		if d.PrimaryRepair != nil && d.PrimaryRepair.Index == c.Index {
			marker = " (primary)"
		}
		if c.LinkedTo != nil {
			marker = fmt.Sprintf(" (linked to #%d)", *c.LinkedTo)
		}
		fmt.Fprintf(&b, "| %d | %s%s | %s | %.2f | %s | %s | %.2f |\n",
			c.Index, escapeCell(c.Description), marker, c.ItemType, c.TotalPrice, c.Status, c.Method, c.Confidence)
	}
	b.WriteString("\n")

	b.WriteString("## Screening\n\n")
	b.WriteString("| Check | Hard | Verdict | Reason |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, c := range d.Screening.Checks {
		fmt.Fprintf(&b, "| %s | %v | %s | %s |\n", c.CheckID, c.IsHard, c.Verdict, escapeCell(c.Reason))
	}
	b.WriteString("\n")

	p := d.Payout
	b.WriteString("## Payout\n\n")
	fmt.Fprintf(&b, "| Step | Amount |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Gross covered | %.2f |\n", p.GrossCovered)
	fmt.Fprintf(&b, "| After cap | %.2f |\n", p.Capped)
	fmt.Fprintf(&b, "| After coverage rate (%.0f%%) | %.2f |\n", p.CoveragePercent*100, p.AfterRate)
	fmt.Fprintf(&b, "| Tax (%.2f%%) | %.2f |\n", p.TaxRate*100, p.TaxAmount)
	fmt.Fprintf(&b, "| Subtotal | %.2f |\n", p.Subtotal)
	fmt.Fprintf(&b, "| Deductible | %.2f |\n", p.Deductible)
	fmt.Fprintf(&b, "| **Payout** | **%.2f** |\n\n", p.Payout)

	b.WriteString("## Confidence\n\n")
	for _, c := range d.Confidence.Components {
		if !c.Present {
			fmt.Fprintf(&b, "- %s: n/a\n", c.Name)
			continue
		}
		fmt.Fprintf(&b, "- %s: %.2f (weight %.2f)\n", c.Name, c.Score, c.Weight)
	}

	if d.Advisory != nil {
		b.WriteString("\n## Advisory (not authoritative)\n\n")
		fmt.Fprintf(&b, "Suggested by %s: %s\n", d.Advisory.Provider, d.Advisory.SuggestedDecision)
		for _, r := range d.Advisory.Rationale {
			fmt.Fprintf(&b, "\n> %s\n", r)
		}
	}
	return b.String()
}

// RenderSummary prints a short terminal summary
func (r *Renderer) RenderSummary(d *model.Dossier) {
	totals := model.Totals(d.Coverages)
	fmt.Fprintf(r.out, "\n")
	fmt.Fprintf(r.out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(r.out, "  Claim %s: %s\n", d.ClaimID, d.Verdict.Decision)
	fmt.Fprintf(r.out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(r.out, "\n")
	fmt.Fprintf(r.out, "  Payout:       %.2f\n", d.Verdict.Payout)
	fmt.Fprintf(r.out, "  Confidence:   %.2f (%s)\n", d.Confidence.Composite, d.Confidence.Band)
	fmt.Fprintf(r.out, "  Items:        %d covered, %d not covered, %d review\n",
		totals.Covered, totals.NotCovered, totals.ReviewNeeded)
	fmt.Fprintf(r.out, "  Version:      v%d (config %s)\n", d.Version, d.ConfigVersion)
	fmt.Fprintf(r.out, "\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
