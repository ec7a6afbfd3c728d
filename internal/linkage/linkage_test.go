package linkage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/adjudex/internal/model"
)

type stubIdentifier struct {
	primary *model.PrimaryRepair
	err     error
}

func (s stubIdentifier) IdentifyPrimaryRepair(context.Context, []model.LineItem, []model.LineItemCoverage) (*model.PrimaryRepair, error) {
	return s.primary, s.err
}

func testPolicy() model.PolicyCoverage {
	return model.PolicyCoverage{
		Covered:  map[string][]string{"turbo": {"turbocharger"}, "engine": {"cylinder head"}},
		Excluded: map[string][]string{"engine": {"spark plug"}},
	}
}

func newLinker(t *testing.T) *Linker {
	t.Helper()
	l, err := New(model.DefaultConfig().Linkage, nil)
	require.NoError(t, err)
	return l
}

func coverage(index int, desc string, typ model.ItemType, price float64, source model.DecisionSource,
	status model.CoverageStatus, confidence float64, category, component string) model.LineItemCoverage {
	c := model.NewCoverage(index, model.LineItem{Description: desc, ItemType: typ, TotalPrice: price})
	c.Apply(model.TraceStep{
		Source:     source,
		Verdict:    status,
		Method:     model.MatchMethod(source),
		Confidence: confidence,
		Category:   category,
		Component:  component,
	})
	return c
}

// claim is a turbo repair with the usual side items
func claim() []model.LineItemCoverage {
	return []model.LineItemCoverage{
		coverage(0, "Turbolader", model.ItemTypePart, 1800, model.SourceReasoning, model.StatusCovered, 0.92, "turbo", "turbocharger"),
		coverage(1, "Dichtung Turbolader", model.ItemTypePart, 25, model.SourceReasoning, model.StatusReviewNeeded, 0.3, "", ""),
		coverage(2, "Arbeitszeit Montage", model.ItemTypeLabor, 400, model.SourceReasoning, model.StatusNotCovered, 0.7, "", ""),
		coverage(3, "Fehlerspeicher auslesen Diagnose", model.ItemTypeLabor, 90, model.SourceReasoning, model.StatusNotCovered, 0.8, "", ""),
		coverage(4, "Entsorgung Altteile", model.ItemTypeFee, 15, model.SourceRule, model.StatusNotCovered, 1, "", ""),
		coverage(5, "Schraube M8", model.ItemTypePart, 3, model.SourceReasoning, model.StatusReviewNeeded, 0.2, "", ""),
		coverage(6, "Replace spark plug labor", model.ItemTypeLabor, 60, model.SourceReasoning, model.StatusNotCovered, 0.7, "", ""),
		coverage(7, "Arbeit Zylinderkopf", model.ItemTypeLabor, 500, model.SourceRule, model.StatusNotCovered, 1, "", ""),
	}
}

func TestFallbackPrimary(t *testing.T) {
	covs := []model.LineItemCoverage{
		coverage(0, "Labor", model.ItemTypeLabor, 5000, model.SourceReasoning, model.StatusCovered, 0.9, "turbo", "turbocharger"),
		coverage(1, "Turbolader", model.ItemTypePart, 1000, model.SourceReasoning, model.StatusCovered, 0.9, "turbo", "turbocharger"),
		coverage(2, "Zylinderkopf", model.ItemTypePart, 1000, model.SourceReasoning, model.StatusCovered, 0.85, "engine", "cylinder head"),
		coverage(3, "Bremsscheibe", model.ItemTypePart, 3000, model.SourceReasoning, model.StatusNotCovered, 0.9, "", ""),
	}

	primary := FallbackPrimary(covs)
	require.NotNil(t, primary)
	assert.Equal(t, 1, primary.Index, "ties go to the lowest index")
	assert.Equal(t, model.PrimaryByFallback, primary.Method)

	assert.Nil(t, FallbackPrimary(covs[3:]))
}

func TestResolvePrimary(t *testing.T) {
	l := newLinker(t)
	covs := claim()

	tests := []struct {
		name       string
		identifier PrimaryIdentifier
		wantIndex  int
		wantMethod model.PrimaryRepairMethod
	}{
		{"no identifier", nil, 0, model.PrimaryByFallback},
		{"oracle names covered part", stubIdentifier{primary: &model.PrimaryRepair{Index: 0, Method: model.PrimaryByReasoning, Confidence: 0.9}}, 0, model.PrimaryByReasoning},
		{"oracle names labor", stubIdentifier{primary: &model.PrimaryRepair{Index: 2, Method: model.PrimaryByReasoning}}, 0, model.PrimaryByFallback},
		{"oracle names nothing", stubIdentifier{}, 0, model.PrimaryByFallback},
		{"oracle fails", stubIdentifier{err: errors.New("timeout")}, 0, model.PrimaryByFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := l.ResolvePrimary(context.Background(), tt.identifier, nil, covs)
			require.NotNil(t, primary)
			assert.Equal(t, tt.wantIndex, primary.Index)
			assert.Equal(t, tt.wantMethod, primary.Method)
		})
	}
}

func TestPromote(t *testing.T) {
	l := newLinker(t)
	covs := claim()
	primary := FallbackPrimary(covs)

	promoted := l.Promote(covs, primary, testPolicy())
	assert.Equal(t, []int{1, 2}, promoted)

	// Gasket links to the turbo by description token
	gasket := covs[1]
	assert.Equal(t, model.StatusCovered, gasket.Status)
	assert.Equal(t, model.MethodPromotion, gasket.Method)
	assert.Equal(t, "turbo", gasket.Category)
	assert.Equal(t, 0.92, gasket.Confidence)
	require.NotNil(t, gasket.LinkedTo)
	assert.Equal(t, 0, *gasket.LinkedTo)
	last, _ := gasket.LastStep()
	assert.Equal(t, model.SourcePromotion, last.Source)
	require.NoError(t, gasket.Validate())

	// Plain labor links to the primary repair
	assert.Equal(t, model.StatusCovered, covs[2].Status)
	assert.Equal(t, 400.0, covs[2].CoveredAmount)

	// Guards
	assert.Equal(t, model.StatusNotCovered, covs[3].Status, "diagnostic labor")
	assert.Equal(t, model.StatusNotCovered, covs[4].Status, "fee")
	assert.Equal(t, model.StatusReviewNeeded, covs[5].Status, "ancillary without link target")
	assert.Equal(t, model.StatusNotCovered, covs[6].Status, "references excluded part")
	assert.Equal(t, model.StatusNotCovered, covs[7].Status, "rule verdicts are final")
	assert.Len(t, covs[7].Trace, 1)
}

func TestPromote_FixedPoint(t *testing.T) {
	l := newLinker(t)
	covs := claim()
	primary := FallbackPrimary(covs)

	l.Promote(covs, primary, testPolicy())
	snapshot := make([]int, len(covs))
	for i, c := range covs {
		snapshot[i] = len(c.Trace)
	}

	assert.Empty(t, l.Promote(covs, primary, testPolicy()))
	for i, c := range covs {
		assert.Len(t, c.Trace, snapshot[i], "item %d", i)
	}
}

func TestPromote_NoPrimary(t *testing.T) {
	l := newLinker(t)
	covs := []model.LineItemCoverage{
		coverage(0, "Arbeitszeit", model.ItemTypeLabor, 200, model.SourceReasoning, model.StatusReviewNeeded, 0.3, "", ""),
	}
	assert.Empty(t, l.Promote(covs, nil, testPolicy()))
	assert.Equal(t, model.StatusReviewNeeded, covs[0].Status)
}

func TestPromote_RuleExcludedComponent(t *testing.T) {
	l := newLinker(t)
	covs := []model.LineItemCoverage{
		coverage(0, "Turbolader", model.ItemTypePart, 1800, model.SourceReasoning, model.StatusCovered, 0.9, "turbo", "turbocharger"),
		coverage(1, "Ladeluftkühler", model.ItemTypePart, 600, model.SourceRule, model.StatusNotCovered, 1, "turbo", "intercooler"),
		coverage(2, "Montage Intercooler", model.ItemTypeLabor, 150, model.SourceReasoning, model.StatusNotCovered, 0.7, "", ""),
	}
	assert.Empty(t, l.Promote(covs, FallbackPrimary(covs), testPolicy()))
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(model.LinkageConfig{AncillaryPatterns: []string{"("}}, nil)
	assert.Error(t, err)
}

func TestPromote_SkipsFallbackReview(t *testing.T) {
	l := newLinker(t)
	covs := claim()[:1]

	// Oracle outage: review routing with nothing behind it
	outage := model.NewCoverage(1, model.LineItem{Description: "Arbeitszeit Turbolader ersetzen", ItemType: model.ItemTypeLabor, TotalPrice: 300})
	outage.Apply(model.TraceStep{
		Source:   model.SourceReasoning,
		Verdict:  model.StatusReviewNeeded,
		Method:   model.MethodReasoning,
		Fallback: true,
		Detail:   "oracle failure: connection reset",
	})
	covs = append(covs, outage)

	assert.Empty(t, l.Promote(covs, FallbackPrimary(covs), testPolicy()))
	assert.Equal(t, model.StatusReviewNeeded, covs[1].Status)
	assert.Zero(t, covs[1].Confidence)
	assert.Len(t, covs[1].Trace, 1)
}

func TestPromote_ExcludedTermNeedsWordStart(t *testing.T) {
	l := newLinker(t)
	policy := testPolicy()
	policy.Excluded["engine"] = append(policy.Excluded["engine"], "oil")

	covs := []model.LineItemCoverage{
		coverage(0, "Turbolader", model.ItemTypePart, 1800, model.SourceReasoning, model.StatusCovered, 0.9, "turbo", "turbocharger"),
		coverage(1, "Arbeitszeit Boilerleitung", model.ItemTypeLabor, 120, model.SourceReasoning, model.StatusNotCovered, 0.7, "", ""),
		coverage(2, "Arbeitszeit Oil Service", model.ItemTypeLabor, 80, model.SourceReasoning, model.StatusNotCovered, 0.7, "", ""),
	}

	assert.Equal(t, []int{1}, l.Promote(covs, FallbackPrimary(covs), policy))
	assert.Equal(t, model.StatusNotCovered, covs[2].Status)
}

func TestStartsWord(t *testing.T) {
	tests := []struct {
		s, term string
		want    bool
	}{
		{"oil service", "oil", true},
		{"engine oil", "oil", true},
		{"boiler", "oil", false},
		{"boiler oil", "oil", true},
		{"spark-plug", "plug", true},
		{"kühler", "uhler", false},
		{"anything", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, startsWord(tt.s, tt.term), "%q in %q", tt.term, tt.s)
	}
}
