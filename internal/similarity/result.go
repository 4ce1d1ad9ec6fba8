package similarity

import "github.com/contextmemory/workmem/internal/fingerprint"

// SimilarityResult is the §3.5 scoring type bundling one item's full
// similarity comparison against a query: its id, per-space scores, the
// slots that matched the high-threshold gate, the weighted aggregate,
// the normalized relevance score, and the matching-space count.
type SimilarityResult struct {
	ItemID            string
	Scores            PerSpaceScores
	MatchingSpaces    []fingerprint.Slot
	WeightedAggregate float64
	RelevanceScore    float64
	SpaceCount        int
}

// Score builds a SimilarityResult for itemID by scoring queryFP against
// itemFP with engine.
func Score(engine *Engine, itemID string, queryFP, itemFP fingerprint.Fingerprint) SimilarityResult {
	scores := engine.ComputeSimilarity(queryFP, itemFP)
	matching := engine.MatchingSpaces(scores)
	return SimilarityResult{
		ItemID:            itemID,
		Scores:            scores,
		MatchingSpaces:    matching,
		WeightedAggregate: engine.WeightedSimilarity(scores),
		RelevanceScore:    engine.RelevanceScore(scores),
		SpaceCount:        len(matching),
	}
}
