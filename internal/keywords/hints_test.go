package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/adjudex/internal/model"
)

func defaultGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(model.DefaultConfig().Vocabulary)
	require.NoError(t, err)
	return g
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kühler", "kuhler"},
		{"KÜHLER", "kuhler"},
		{"  Straße ", "strasse"},
		{"Boîte de Vitesses", "boite de vitesses"},
		{"Démarreur", "demarreur"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestGenerator_Hint(t *testing.T) {
	g := defaultGenerator(t)

	tests := []struct {
		name          string
		description   string
		wantComponent string
		wantKind      MatchKind
		wantConf      float64
	}{
		{"german compound exact", "Zylinderkopfdichtung erneuern", "cylinder head gasket", MatchExactToken, ExactTokenConfidence},
		{"french phrase", "Joint de culasse", "cylinder head gasket", MatchExactPhrase, ExactPhraseConfidence},
		{"diacritics folded", "KUHLER ersetzt", "radiator", MatchExactToken, ExactTokenConfidence},
		{"italian", "Pompa acqua nuova", "water pump", MatchExactPhrase, ExactPhraseConfidence},
		{"compound containment", "Turboladerdichtsatz", "turbocharger", MatchCompound, CompoundConfidence},
		{"english", "Replace alternator", "alternator", MatchExactToken, ExactTokenConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := g.Hint(tt.description)
			require.NotNil(t, h)
			assert.Equal(t, tt.wantComponent, h.Component)
			assert.Equal(t, tt.wantKind, h.Kind)
			assert.InDelta(t, tt.wantConf, h.Confidence, 1e-9)
		})
	}
}

func TestGenerator_NoHint(t *testing.T) {
	g := defaultGenerator(t)

	for _, desc := range []string{"", "Öl", "Arbeit", "   "} {
		assert.Nil(t, g.Hint(desc), desc)
	}
}

func TestGenerator_ShortTermGuard(t *testing.T) {
	g, err := NewGenerator(model.VocabularyConfig{
		Version:       "test",
		MinTermLength: 4,
		Entries: []model.VocabularyEntry{
			{Category: "brakes", Component: "abs unit", Terms: []string{"abs"}},
			{Category: "engine", Component: "valve", Terms: []string{"ventil"}},
		},
	})
	require.NoError(t, err)

	// Short vocabulary term inside a longer word is not a match
	assert.Nil(t, g.Hint("Absaugung Werkstatt"))

	// Exact short token is allowed
	h := g.Hint("ABS defekt")
	require.NotNil(t, h)
	assert.Equal(t, MatchExactToken, h.Kind)

	// Short description token inside a vocabulary term is not a match
	assert.Nil(t, g.Hint("ven"))

	// Both long enough: containment
	h = g.Hint("Ventildeckel")
	require.NotNil(t, h)
	assert.Equal(t, MatchCompound, h.Kind)
}

func TestGenerator_TieBreakByLengthThenOrder(t *testing.T) {
	g, err := NewGenerator(model.VocabularyConfig{
		MinTermLength: 4,
		Entries: []model.VocabularyEntry{
			{Category: "a", Component: "first", Terms: []string{"pumpe"}},
			{Category: "b", Component: "second", Terms: []string{"pumpe"}},
			{Category: "c", Component: "longer", Terms: []string{"wasserpumpe"}},
		},
	})
	require.NoError(t, err)

	h := g.Hint("pumpe")
	require.NotNil(t, h)
	assert.Equal(t, "first", h.Component)

	h = g.Hint("wasserpumpe pumpe")
	require.NotNil(t, h)
	assert.Equal(t, "longer", h.Component)
}

func TestGenerateHints_AlignedWithItems(t *testing.T) {
	g := defaultGenerator(t)
	items := []model.LineItem{
		{Description: "Turbolader"},
		{Description: "Arbeit"},
		{Description: "Wasserpumpe"},
	}

	hints := g.GenerateHints(items)
	require.Len(t, hints, 3)
	assert.NotNil(t, hints[0])
	assert.Nil(t, hints[1])
	assert.Equal(t, "water pump", hints[2].Component)
	assert.Equal(t, "vocab-2026.10", g.Version())
}

func TestNewGenerator_RejectsIncompleteEntries(t *testing.T) {
	_, err := NewGenerator(model.VocabularyConfig{Entries: []model.VocabularyEntry{{Component: "x", Terms: []string{"x"}}}})
	assert.Error(t, err)

	_, err = NewGenerator(model.VocabularyConfig{Entries: []model.VocabularyEntry{{Category: "a", Component: "x", Terms: []string{"--"}}}})
	assert.Error(t, err)
}
