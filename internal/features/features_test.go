package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/retracite/internal/model"
)

func TestMinMax_Endpoints(t *testing.T) {
	got := MinMax([]float64{2010, 2000, 2049, 2005})

	assert.Equal(t, 0.0, got[1], "minimum maps to exactly 0")
	assert.Equal(t, 1.0, got[2], "maximum maps to exactly 1")
	for _, v := range got {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.InDelta(t, 10.0/49.0, got[0], 1e-12)
}

func TestMinMax_NegativeValues(t *testing.T) {
	got := MinMax([]float64{-3, 0, 5})
	assert.Equal(t, []float64{0, 0.375, 1}, got)
}

func TestMinMax_Degenerate(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0}, MinMax([]float64{2012, 2012, 2012}))
	assert.Equal(t, []float64{0}, MinMax([]float64{7}))
	assert.Empty(t, MinMax(nil))
}

func TestMinMax_DoesNotModifyInput(t *testing.T) {
	in := []float64{1, 2, 3}
	MinMax(in)
	assert.Equal(t, []float64{1, 2, 3}, in)
}

func TestBuild(t *testing.T) {
	score := 92
	rows := []model.DatasetRow{
		{
			Record:     model.CitationRecord{PublishedYear: 2010, RetractedYear: 2008, Section: "Introduction", Label: model.LabelUnknowing},
			Paragraph:  "Matched paragraph.",
			MatchScore: &score,
		},
		{
			Record:    model.CitationRecord{PublishedYear: 2014, RetractedYear: 2004, Section: "Discussion", Label: model.LabelKnowing},
			Paragraph: "Knowing context.",
		},
		{
			Record:    model.CitationRecord{PublishedYear: 2006, RetractedYear: 2008, Section: "Methods", Label: model.LabelKnowing},
			Paragraph: "Cited before the notice.",
		},
	}

	got := Build(rows)
	require.Len(t, got, 3)

	assert.Equal(t, model.LabelUnknowing, got[0].Label)
	assert.Equal(t, 2010, got[0].PublishedYearNominal)
	assert.Equal(t, 0.5, got[0].PublishedYearNormalized)
	assert.Equal(t, 1.0, got[0].RetractedYearNormalized)
	assert.Equal(t, 2, got[0].YearsBetweenNominal)
	assert.Equal(t, "Matched paragraph.", got[0].Paragraph)
	require.NotNil(t, got[0].MatchScore)
	assert.Equal(t, 92, *got[0].MatchScore)

	// years between: 2, 10, -2 -> -2 is the minimum and is kept
	assert.Equal(t, 1.0, got[1].YearsBetweenNormalized)
	assert.Equal(t, 0.0, got[2].YearsBetweenNormalized)
	assert.Equal(t, -2, got[2].YearsBetweenNominal)
	assert.InDelta(t, 1.0/3.0, got[0].YearsBetweenNormalized, 1e-12)

	assert.Nil(t, got[1].MatchScore)
	assert.Equal(t, "Discussion", got[1].Section)
}

func TestBuild_SingleYearColumnIsZero(t *testing.T) {
	rows := []model.DatasetRow{
		{Record: model.CitationRecord{PublishedYear: 2010, RetractedYear: 2008}},
		{Record: model.CitationRecord{PublishedYear: 2012, RetractedYear: 2008}},
	}
	got := Build(rows)
	assert.Equal(t, 0.0, got[0].RetractedYearNormalized)
	assert.Equal(t, 0.0, got[1].RetractedYearNormalized)
	assert.Equal(t, 1.0, got[1].PublishedYearNormalized)
}
