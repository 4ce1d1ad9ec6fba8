// Package injection builds candidates from retrieval results and
// divergence alerts, ranks them by priority, and greedy-packs them under
// a per-category token budget. Empty is never an error here — it is an
// ordinary output for an empty session, no divergence, or no matches.
package injection

import (
	"time"

	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/similarity"
)

// Bucket is the weighted-agreement bucket a candidate falls into.
// Candidates below SingleSpaceMatch's floor are excluded entirely.
type Bucket string

const (
	BucketHighRelevanceCluster Bucket = "high_relevance_cluster"
	BucketSingleSpaceMatch     Bucket = "single_space_match"
	BucketExcluded             Bucket = "excluded"
)

// MaxWeightedAgreement is the global ceiling weighted_agreement clamps
// to, matching fingerprint.MaxWeightedAgreement.
const MaxWeightedAgreement = fingerprint.MaxWeightedAgreement

// matchThreshold is the per-slot score a candidate must exceed for that
// slot to count toward weighted agreement. It is distinct from (and
// looser than) the similarity engine's high/low relevance thresholds,
// and used only here.
const matchThreshold = 0.5

// RetrievedItem is the minimal shape the injection pipeline needs out of
// a retrieval result: enough to build a candidate without re-depending
// on the pipeline or façade packages directly.
type RetrievedItem struct {
	ItemID    string
	Content   string
	CreatedAt time.Time
	Scores    similarity.PerSpaceScores
}

// InjectionCandidate is one item competing for a slot in the injected
// context.
type InjectionCandidate struct {
	ID               string
	ItemID           string
	Content          string
	Relevance        float64
	RecencyFactor    float64
	DiversityBonus   float64
	WeightedAgreement float64
	MatchingSpaces   []fingerprint.Slot
	Priority         float64
	TokenCount       int
	Category         fingerprint.Category
	IsDivergenceAlert bool
	CreatedAt        time.Time
	Bucket           Bucket
}

// TokenBudget bounds the total tokens selected and, within that, a
// per-category ceiling. DivergenceAlert candidates are budgeted against
// the semantic sub-budget: divergence detection only watches
// semantic-category slots, so every alert is semantic by construction.
type TokenBudget struct {
	Total int
	Sub   [4]int // indexed by fingerprint.Category
}

// DefaultBudget is the full-path default: total 1200, split across the
// four categories. The per-category split is a deployer-tunable default,
// not a fixed ratio; an even-ish split is the least-surprising starting
// point.
func DefaultBudget() TokenBudget {
	return TokenBudget{
		Total: 1200,
		Sub:   [4]int{400, 300, 300, 200},
	}
}

// BriefBudget is the brief-path ceiling: a single flat 200-token budget,
// no divergence, no per-category split.
func BriefBudget() TokenBudget {
	return TokenBudget{Total: 200, Sub: [4]int{200, 200, 200, 200}}
}

// Result is the injection pipeline's output: the selected candidates in
// pack order, plus the tokens actually consumed overall and per category.
type Result struct {
	Selected   []InjectionCandidate
	TokensUsed int
	TokensByCategory [4]int
}
