package conceptgen

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleCorpus() []ConceptItem {
	mk := func(radius float64) ConceptItem {
		return ConceptItem{
			Category: "Mug",
			Conceptualization: []TemplateInstance{
				{
					Template: "Body",
					Parameters: map[string]ParamValue{
						"radius": NewScalarParam(radius),
					},
				},
			},
		}
	}
	radii := []float64{1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0, 9.0, 10.0}
	items := make([]ConceptItem, len(radii))
	for i, r := range radii {
		items[i] = mk(r)
	}
	return items
}

func TestDiscretizeIsWithinReservedRange(t *testing.T) {
	p := NewParameterProcessor(4, 1000)
	p.Collect(sampleCorpus())

	for _, v := range []float64{1.0, 5.5, 10.0} {
		tok := p.Discretize(v, "Mug", "Body", "radius", 0)
		require.GreaterOrEqual(t, tok, 1000)
		require.Less(t, tok, 1000+4)
	}
}

func TestDiscretizeUnknownEntryFallsBackToV0(t *testing.T) {
	p := NewParameterProcessor(4, 1000)
	p.Collect(sampleCorpus())

	tok := p.Discretize(42.0, "Mug", "Body", "height", 0)
	require.Equal(t, 1000, tok)
}

func TestRecoverUnknownEntryReturnsZero(t *testing.T) {
	p := NewParameterProcessor(4, 1000)
	p.Collect(sampleCorpus())

	v := p.Recover(1001, "Mug", "Body", "height", 0)
	require.Equal(t, 0.0, v)
}

func TestProcessItemThenRecoverItemStaysInDomain(t *testing.T) {
	p := NewParameterProcessor(8, 1000)
	p.Collect(sampleCorpus())

	original := sampleCorpus()[3] // radius = 4.0
	processed := p.ProcessItem(original)

	tok := int(processed.Conceptualization[0].Parameters["radius"].Values[0])
	require.GreaterOrEqual(t, tok, 1000)
	require.Less(t, tok, 1008)

	recovered := p.RecoverItem(processed)
	v := recovered.Conceptualization[0].Parameters["radius"].Values[0]
	require.GreaterOrEqual(t, v, 1.0)
	require.LessOrEqual(t, v, 10.0)
}

func TestSaveStatsLoadStatsRoundTrips(t *testing.T) {
	p := NewParameterProcessor(4, 1000)
	p.Collect(sampleCorpus())

	var buf bytes.Buffer
	require.NoError(t, p.SaveStats(&buf))

	loaded := NewParameterProcessor(4, 1000)
	require.NoError(t, loaded.LoadStats(&buf))

	want := p.Discretize(5.0, "Mug", "Body", "radius", 0)
	got := loaded.Discretize(5.0, "Mug", "Body", "radius", 0)
	require.Equal(t, want, got)
}

func TestGetParamStatisticsReportsObservedRange(t *testing.T) {
	p := NewParameterProcessor(4, 1000)
	p.Collect(sampleCorpus())

	stats := p.GetParamStatistics("Mug", "Body", "radius")
	require.Len(t, stats, 1)
	require.Equal(t, 1.0, stats[0].Min)
	require.Equal(t, 10.0, stats[0].Max)
}
