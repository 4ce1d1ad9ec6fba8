package injection

import (
	"time"

	"github.com/google/uuid"

	"github.com/contextmemory/workmem/internal/divergence"
	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/similarity"
)

// tokensPerChar approximates a token count from content length by rune
// count, absent a real tokenizer dependency in this layer.
const tokensPerChar = 0.25

func estimateTokens(content string) int {
	n := int(float64(len([]rune(content))) * tokensPerChar)
	if n < 1 && content != "" {
		n = 1
	}
	return n
}

// weightedAgreement sums category_weight(slot) over slots whose score
// exceeds matchThreshold, clamped to MaxWeightedAgreement.
func weightedAgreement(scores similarity.PerSpaceScores) float64 {
	var sum float64
	for slot := fingerprint.Slot(0); slot < fingerprint.NumSlots; slot++ {
		if scores[slot] > matchThreshold {
			sum += fingerprint.CategoryWeight(fingerprint.SlotSpecs[slot].Category)
		}
	}
	if sum > MaxWeightedAgreement {
		sum = MaxWeightedAgreement
	}
	return sum
}

func bucketFor(weighted float64) Bucket {
	switch {
	case weighted >= 2.5:
		return BucketHighRelevanceCluster
	case weighted >= 1.0:
		return BucketSingleSpaceMatch
	default:
		return BucketExcluded
	}
}

// dominantCategory picks the category a candidate is budgeted under: the
// matching semantic-category slot if one exists (semantic dominates by
// construction weight), else the first matching slot's category, else
// CategorySemantic as a catch-all for candidates with no matches above
// the match threshold.
func dominantCategory(matching []fingerprint.Slot) fingerprint.Category {
	if len(matching) == 0 {
		return fingerprint.CategorySemantic
	}
	for _, slot := range matching {
		if fingerprint.SlotSpecs[slot].Category == fingerprint.CategorySemantic {
			return fingerprint.CategorySemantic
		}
	}
	return fingerprint.SlotSpecs[matching[0]].Category
}

// BuildFromRetrieval turns one retrieval hit into an InjectionCandidate.
// MatchingSpaces and weighted agreement are derived directly from the
// per-space scores so callers never need to recompute them with the
// similarity engine.
func BuildFromRetrieval(item RetrievedItem, engine *similarity.Engine, now time.Time) InjectionCandidate {
	matching := engine.MatchingSpaces(item.Scores)
	weighted := weightedAgreement(item.Scores)
	relevance := engine.RelevanceScore(item.Scores)

	return InjectionCandidate{
		ID:                uuid.New().String(),
		ItemID:            item.ItemID,
		Content:           item.Content,
		Relevance:         relevance,
		RecencyFactor:     recencyFactor(now.Sub(item.CreatedAt)),
		DiversityBonus:    diversityBonus(weighted),
		WeightedAgreement: weighted,
		MatchingSpaces:    matching,
		TokenCount:        estimateTokens(item.Content),
		Category:          dominantCategory(matching),
		CreatedAt:         item.CreatedAt,
		Bucket:            bucketFor(weighted),
	}
}

// BuildFromAlert turns one divergence alert into a high-priority
// DivergenceAlert candidate: content is the alert's summary, relevance
// is 1 - alert.similarity. Alerts are always semantic, so they budget
// against the semantic sub-budget and bypass the weighted-agreement
// exclusion bucket entirely.
func BuildFromAlert(alert divergence.Alert, now time.Time) InjectionCandidate {
	relevance := 1 - alert.Similarity
	return InjectionCandidate{
		ID:                uuid.New().String(),
		ItemID:            alert.ItemID,
		Content:           alert.Summary,
		Relevance:         relevance,
		RecencyFactor:     recencyFactor(now.Sub(alert.Timestamp)),
		DiversityBonus:    diversityBonus(MaxWeightedAgreement),
		WeightedAgreement: MaxWeightedAgreement,
		MatchingSpaces:    []fingerprint.Slot{alert.Slot},
		TokenCount:        estimateTokens(alert.Summary),
		Category:          fingerprint.CategorySemantic,
		IsDivergenceAlert: true,
		CreatedAt:         alert.Timestamp,
		Bucket:            BucketHighRelevanceCluster,
	}
}
