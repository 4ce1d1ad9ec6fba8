package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/contextmemory/workmem/internal/fingerprint"
)

func TestTemporalExclusion(t *testing.T) {
	// Given scores where only the three temporal slots are high and
	// everything else is zero
	var scores PerSpaceScores
	scores[fingerprint.SlotTemporalRecent] = 0.95
	scores[fingerprint.SlotTemporalPeriodic] = 0.95
	scores[fingerprint.SlotTemporalPositional] = 0.95

	e := New()

	// When gating for relevance
	// Then temporal slots still count for ANY-relevance (gating semantics)
	assert.True(t, e.IsRelevant(scores))

	// But the weighted aggregates must ignore them entirely
	assert.Equal(t, 0.0, e.RelevanceScore(scores))
	assert.Less(t, e.WeightedSimilarity(scores), 0.01)
}

func TestWeightedSimilarityRange(t *testing.T) {
	e := New()
	var scores PerSpaceScores
	for i := range scores {
		scores[i] = 1.0
	}
	assert.InDelta(t, 1.0, e.WeightedSimilarity(scores), 1e-9)
	assert.InDelta(t, 1.0, e.RelevanceScore(scores), 1e-9)

	var zero PerSpaceScores
	assert.Equal(t, 0.0, e.WeightedSimilarity(zero))
	assert.Equal(t, 0.0, e.RelevanceScore(zero))
}

func TestHighThresholdStrict(t *testing.T) {
	e := New()
	var scores PerSpaceScores
	// Exactly at the semantic high threshold: must NOT count as a match
	// (the predicate is strict >, per the threshold-strictness law).
	scores[fingerprint.SlotSemantic] = e.Thresholds().High[fingerprint.SlotSemantic]
	assert.False(t, e.IsRelevant(scores))
	assert.Empty(t, e.MatchingSpaces(scores))

	scores[fingerprint.SlotSemantic] += 1e-9
	assert.True(t, e.IsRelevant(scores))
	assert.Contains(t, e.MatchingSpaces(scores), fingerprint.SlotSemantic)
}

func TestComputeSimilarityIdentical(t *testing.T) {
	e := New()
	fp := fingerprint.Zeroed()
	fp.Slots[fingerprint.SlotSemantic] = fingerprint.DenseVector{1, 0, 0}
	scores := e.ComputeSimilarity(fp, fp)
	assert.InDelta(t, 1.0, scores[fingerprint.SlotSemantic], 1e-9)
}

func TestRelevanceScoreNeverNaN(t *testing.T) {
	e := New()
	var scores PerSpaceScores
	for i := range scores {
		scores[i] = -5 // degenerate, should clamp cleanly
	}
	r := e.RelevanceScore(scores)
	w := e.WeightedSimilarity(scores)
	assert.False(t, r != r) // not NaN
	assert.False(t, w != w)
	assert.GreaterOrEqual(t, r, 0.0)
	assert.GreaterOrEqual(t, w, 0.0)
}
