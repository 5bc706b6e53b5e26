package match

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const retractionParagraph = "Smith et al. later retracted this work. However, the findings were reused in later studies."

type failingDocument struct{ err error }

func (d failingDocument) Paragraphs() ([]string, error) { return nil, d.err }

func TestMatch_FindsParagraph(t *testing.T) {
	doc := StaticDocument{"Unrelated opening paragraph about methods.", retractionParagraph}

	result, err := Match(doc, "the findings were reused in later studies", 85)
	require.NoError(t, err)

	assert.True(t, result.Found)
	assert.Equal(t, retractionParagraph, result.Paragraph)
	assert.Equal(t, 1, result.Index)
	assert.Equal(t, 2, result.Sentence)
	assert.Equal(t, 90, result.Score)
	assert.Equal(t, 2, result.Scanned)
}

func TestMatch_NoMatch(t *testing.T) {
	doc := StaticDocument{retractionParagraph}

	result, err := Match(doc, "completely unrelated text about astrophysics", 85)
	require.NoError(t, err)

	assert.False(t, result.Found)
	assert.Empty(t, result.Paragraph)
	assert.Equal(t, -1, result.Index)
	assert.Equal(t, -1, result.Sentence)
	assert.Less(t, result.Score, 85)
	assert.Equal(t, 1, result.Scanned)
}

func TestMatch_TargetNoiseIgnored(t *testing.T) {
	doc := StaticDocument{retractionParagraph}

	clean, err := Match(doc, "the findings were reused in later studies", 85)
	require.NoError(t, err)
	noisy, err := Match(doc, "  the findings were reused in later studies.\n", 85)
	require.NoError(t, err)

	assert.Equal(t, clean, noisy)
}

func TestMatch_GreedyFirstParagraphWins(t *testing.T) {
	target := "the cohort showed a significant increase in risk"
	doc := StaticDocument{
		"Background only. Nothing relevant here.",
		"Earlier, the cohort showed a significant increase in risks.",
		"the cohort showed a significant increase in risk.",
	}

	m, err := NewMatcher(85)
	require.NoError(t, err)

	result, err := m.Match(doc, target)
	require.NoError(t, err)

	// The near-duplicate in paragraph 1 wins even though paragraph 2 is exact
	require.True(t, result.Found)
	assert.Equal(t, 1, result.Index)
	assert.Less(t, result.Score, 100)
}

func TestMatch_FirstSentenceWithinParagraph(t *testing.T) {
	doc := StaticDocument{"alpha beta gamma. alpha beta gamma."}

	result, err := Match(doc, "alpha beta gamma", 50)
	require.NoError(t, err)
	require.True(t, result.Found)
	assert.Equal(t, 0, result.Sentence)
	assert.Equal(t, 100, result.Score)
}

func TestMatch_ThresholdIsStrict(t *testing.T) {
	doc := StaticDocument{"exact sentence."}

	result, err := Match(doc, "exact sentence", 100)
	require.NoError(t, err)
	assert.False(t, result.Found, "a perfect score must not exceed a threshold of 100")
	assert.Equal(t, 100, result.Score)

	result, err = Match(doc, "exact sentence", 99)
	require.NoError(t, err)
	assert.True(t, result.Found)
}

func TestMatch_ParagraphWithoutPeriodHasNoCandidates(t *testing.T) {
	doc := StaticDocument{"the findings were reused in later studies"}

	result, err := Match(doc, "the findings were reused in later studies", 0)
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestMatch_Monotonic(t *testing.T) {
	docs := []StaticDocument{
		{retractionParagraph},
		{"Background. Unrelated.", "Later studies reused the findings. Others did not."},
		{"Findings were reused. In later studies too."},
		{},
	}
	target := "the findings were reused in later studies"

	for di, doc := range docs {
		prevFound := true
		prevIndex := -1
		for threshold := 0; threshold <= 100; threshold++ {
			result, err := Match(doc, target, threshold)
			require.NoError(t, err)

			if result.Found {
				assert.True(t, prevFound, "doc %d: match at %d but not at %d", di, threshold, threshold-1)
				assert.GreaterOrEqual(t, result.Index, prevIndex, "doc %d: match moved earlier at %d", di, threshold)
				prevIndex = result.Index
			}
			prevFound = result.Found
		}
	}
}

func TestMatch_Idempotent(t *testing.T) {
	m, err := NewMatcher(70)
	require.NoError(t, err)
	doc := StaticDocument{"Background. Unrelated.", retractionParagraph}

	first, err := m.Match(doc, "findings were reused later")
	require.NoError(t, err)
	second, err := m.Match(doc, "findings were reused later")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMatch_Errors(t *testing.T) {
	_, err := NewMatcher(101)
	assert.True(t, errors.Is(err, ErrInvalidThreshold))

	_, err = NewMatcher(-1)
	assert.True(t, errors.Is(err, ErrInvalidThreshold))

	_, err = Match(StaticDocument{retractionParagraph}, "  .  ", 85)
	assert.True(t, errors.Is(err, ErrEmptySentence))

	docErr := errors.New("document not found")
	_, err = Match(failingDocument{err: docErr}, "anything", 85)
	require.Error(t, err)
	assert.True(t, errors.Is(err, docErr))
}

func TestMatcher_Options(t *testing.T) {
	calls := 0
	scorer := func(a, b string) int {
		calls++
		return 0
	}

	m, err := NewMatcher(50, WithScorer(scorer), WithSegmenter(func(p string) []string { return []string{p} }))
	require.NoError(t, err)

	result, err := m.MatchParagraphs([]string{"one", "two"}, "one")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 50, m.Threshold())
}

func TestSegmenterByName(t *testing.T) {
	for _, name := range []string{"", "period", "PERIOD", "terminator"} {
		seg, err := SegmenterByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, seg)
	}

	_, err := SegmenterByName("spacy")
	assert.True(t, errors.Is(err, ErrUnknownSegmenter))

	seg, err := SegmenterByName("terminator")
	require.NoError(t, err)
	m, err := NewMatcher(85, WithSegmenter(seg))
	require.NoError(t, err)

	result, err := m.MatchParagraphs([]string{"Indeed the findings were reused in later studies"}, "the findings were reused in later studies")
	require.NoError(t, err)
	assert.True(t, result.Found, "terminator segmenter keeps the trailing fragment")
}
