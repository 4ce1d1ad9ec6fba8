// Package pipeline implements the 5-stage retrieval pipeline: sparse
// pre-filter, Matryoshka-truncated dense ANN, RRF fusion across per-slot
// rankings, teleological/purpose alignment, and a late-interaction
// MaxSim rerank. It is the large-corpus substitute for the session
// façade's minimal per-session scan (internal/memory), designed to stay
// within a sub-60ms latency target at roughly a million items.
package pipeline

import "github.com/contextmemory/workmem/internal/fingerprint"

// FusionMode selects how stage 3 combines per-slot rankings.
type FusionMode string

const (
	FusionRRF            FusionMode = "rrf"
	FusionWeightedSum    FusionMode = "weighted_sum"
	FusionRelativeScore  FusionMode = "relative_score"
)

// Config is the pipeline's tunable surface.
type Config struct {
	// Stage 1
	SparsePrefilterEnabled bool
	SparseWeight           float64 // convex combination weight for the learned-sparse half; BM25 gets 1-SparseWeight
	BM25K1                 float64
	BM25B                  float64
	MaxCandidates          int

	// Stage 2
	MatryoshkaTruncationDim  int
	MatryoshkaAdaptiveDim    bool
	MatryoshkaMinRecall      float64
	Stage2Candidates         int
	Stage2OversampleFactor   int

	// Stage 3
	RRFK              int
	FusionMode        FusionMode
	UsePurposeWeighting bool
	RRFSlots          []fingerprint.Slot
	Stage3Candidates  int

	// Stage 4
	AlignmentPurposeWeight float64
	AlignmentGoalWeight    float64
	AlignmentRRFWeight     float64
	PassThroughK           int

	// Stage 5
	LateInteractionEnabled bool
	LateInteractionWeight  float64
	MisalignmentThreshold  float64
	FilterMisaligned       bool
	FinalK                 int
}

// DefaultConfig returns the pipeline's default tuning.
func DefaultConfig() Config {
	return Config{
		SparsePrefilterEnabled: true,
		SparseWeight:           0.5,
		BM25K1:                 1.2,
		BM25B:                  0.75,
		MaxCandidates:          10000,

		MatryoshkaTruncationDim: 128,
		MatryoshkaAdaptiveDim:   true,
		MatryoshkaMinRecall:     0.95,
		Stage2Candidates:        1000,
		Stage2OversampleFactor:  5,

		RRFK:                60,
		FusionMode:          FusionRRF,
		UsePurposeWeighting: false,
		RRFSlots:            allSlots(),
		Stage3Candidates:    100,

		AlignmentPurposeWeight: 0.2,
		AlignmentGoalWeight:    0.2,
		AlignmentRRFWeight:     0.6,
		PassThroughK:           50,

		LateInteractionEnabled: true,
		LateInteractionWeight:  0.3,
		MisalignmentThreshold:  0.10,
		FilterMisaligned:       false,
		FinalK:                 10,
	}
}

func allSlots() []fingerprint.Slot {
	out := make([]fingerprint.Slot, fingerprint.NumSlots)
	for i := range out {
		out[i] = fingerprint.Slot(i)
	}
	return out
}

// AdaptiveTruncationDim picks the Matryoshka truncation width for a
// corpus of the given size. The HNSW matryoshka graph is always built
// at 128 dimensions, never retrained or re-projected; this only decides
// how many of the query's leading dimensions are compared, clamped to
// what the graph actually holds.
func AdaptiveTruncationDim(corpusSize int) int {
	switch {
	case corpusSize < 10_000:
		return 128
	case corpusSize < 100_000:
		return 256
	case corpusSize < 1_000_000:
		return 512
	default:
		return 1024
	}
}
