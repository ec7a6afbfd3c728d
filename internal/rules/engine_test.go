package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/adjudex/internal/model"
)

func testPolicy() model.PolicyCoverage {
	return model.PolicyCoverage{
		PolicyID: "POL-1",
		Covered: map[string][]string{
			"turbo":  {"turbocharger"},
			"engine": {"cylinder head"},
		},
		Excluded: map[string][]string{
			"engine": {"spark plug"},
		},
		CoveragePercent: 1,
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	set, err := Compile(model.DefaultConfig().Rules)
	require.NoError(t, err)
	return set.ForPolicy(testPolicy())
}

func TestEngine_Classify(t *testing.T) {
	engine := newEngine(t)

	tests := []struct {
		name       string
		item       model.LineItem
		wantMatch  bool
		wantStatus model.CoverageStatus
		wantMethod model.MatchMethod
		wantRule   string
	}{
		{
			name:       "policy exclusion wins",
			item:       model.LineItem{Description: "Spark plug set", TotalPrice: 60, ItemType: model.ItemTypePart},
			wantMatch:  true,
			wantStatus: model.StatusNotCovered,
			wantMethod: model.MethodRule,
			wantRule:   "EXCLUDED:engine:spark plug",
		},
		{
			name:       "consumable marker",
			item:       model.LineItem{Description: "Kleinmaterial", TotalPrice: 12.5, ItemType: model.ItemTypePart},
			wantMatch:  true,
			wantStatus: model.StatusNotCovered,
			wantMethod: model.MethodRule,
			wantRule:   "CONSUMABLES",
		},
		{
			name:       "disposal with umlaut",
			item:       model.LineItem{Description: "Altöl Entsorgung", TotalPrice: 15, ItemType: model.ItemTypeFee},
			wantMatch:  true,
			wantStatus: model.StatusNotCovered,
			wantMethod: model.MethodRule,
			wantRule:   "DISPOSAL",
		},
		{
			name:       "generic fee",
			item:       model.LineItem{Description: "Werkstattpauschale", TotalPrice: 25, ItemType: model.ItemTypeFee},
			wantMatch:  true,
			wantStatus: model.StatusNotCovered,
			wantMethod: model.MethodRule,
			wantRule:   "FEE",
		},
		{
			name:       "credit line",
			item:       model.LineItem{Description: "Rabatt", TotalPrice: -50, ItemType: model.ItemTypePart},
			wantMatch:  true,
			wantStatus: model.StatusNotCovered,
			wantMethod: model.MethodRule,
			wantRule:   "CREDIT_LINE",
		},
		{
			name:       "catalog covered",
			item:       model.LineItem{Description: "Austauschteil", ItemCode: "trb-4471", TotalPrice: 1800, ItemType: model.ItemTypePart},
			wantMatch:  true,
			wantStatus: model.StatusCovered,
			wantMethod: model.MethodPartNumber,
		},
		{
			name:      "catalog entry not in policy passes through",
			item:      model.LineItem{Description: "Getriebe", ItemCode: "TRN-100", TotalPrice: 900, ItemType: model.ItemTypePart},
			wantMatch: false,
		},
		{
			name:      "no match",
			item:      model.LineItem{Description: "Turbolader", TotalPrice: 1500, ItemType: model.ItemTypePart},
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cov, ok := engine.Classify(7, tt.item)
			require.Equal(t, tt.wantMatch, ok)
			if !ok {
				return
			}
			assert.Equal(t, 7, cov.Index)
			assert.Equal(t, tt.wantStatus, cov.Status)
			assert.Equal(t, tt.wantMethod, cov.Method)
			require.Len(t, cov.Trace, 1)
			assert.Equal(t, model.SourceRule, cov.Trace[0].Source)
			require.NoError(t, cov.Validate())
			if tt.wantRule != "" {
				assert.Contains(t, cov.Trace[0].Detail, tt.wantRule)
				assert.Equal(t, 1.0, cov.Confidence)
			}
		})
	}
}

func TestEngine_Deterministic(t *testing.T) {
	engine := newEngine(t)
	item := model.LineItem{Description: "Umweltpauschale", TotalPrice: 9.9, ItemType: model.ItemTypeFee}

	first, ok := engine.Classify(0, item)
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		again, ok := engine.Classify(0, item)
		require.True(t, ok)
		assert.Equal(t, first.Status, again.Status)
		assert.Equal(t, first.Trace[0].Detail, again.Trace[0].Detail)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  model.RulesConfig
	}{
		{"invalid regexp", model.RulesConfig{Rules: []model.RuleConfig{{ID: "X", Pattern: "(", Status: model.StatusNotCovered}}}},
		{"missing id", model.RulesConfig{Rules: []model.RuleConfig{{Pattern: "x", Status: model.StatusNotCovered}}}},
		{"duplicate id", model.RulesConfig{Rules: []model.RuleConfig{
			{ID: "A", Pattern: "x", Status: model.StatusNotCovered},
			{ID: "A", Pattern: "y", Status: model.StatusNotCovered},
		}}},
		{"invalid status", model.RulesConfig{Rules: []model.RuleConfig{{ID: "A", Pattern: "x", Status: "NOPE"}}}},
		{"invalid amount condition", model.RulesConfig{Rules: []model.RuleConfig{{ID: "A", Status: model.StatusNotCovered, AmountCondition: "between"}}}},
		{"empty catalog prefix", model.RulesConfig{PartCatalog: []model.PartCatalogEntry{{Component: "turbo"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestCatalogLookup_LongestPrefix(t *testing.T) {
	set, err := Compile(model.RulesConfig{PartCatalog: []model.PartCatalogEntry{
		{Prefix: "ENG-", Category: "engine", Component: "engine block"},
		{Prefix: "ENG-CH", Category: "engine", Component: "cylinder head"},
	}})
	require.NoError(t, err)

	entry, ok := set.CatalogLookup(model.LineItem{ItemCode: "eng-ch 0042"})
	require.True(t, ok)
	assert.Equal(t, "cylinder head", entry.Component)

	_, ok = set.CatalogLookup(model.LineItem{ItemCode: ""})
	assert.False(t, ok)
}
