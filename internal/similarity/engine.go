package similarity

import (
	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/metric"
)

// PerSpaceScores is a fixed-size tuple of 13 per-slot similarities, each
// in [-1,1] or [0,1] depending on the slot's metric.
type PerSpaceScores [fingerprint.NumSlots]float64

// Engine is the stateful-only-via-tables similarity engine: its
// threshold and weight tables are fixed constants, not runtime config.
// It holds no per-query state and is safe to share across goroutines
// without locking.
type Engine struct {
	thresholds Thresholds
}

// New builds an Engine with the default threshold table.
func New() *Engine {
	return &Engine{thresholds: DefaultThresholds()}
}

// NewWithThresholds builds an Engine with a caller-supplied threshold
// table, used by tests that probe threshold-boundary behavior.
func NewWithThresholds(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Thresholds exposes the engine's threshold table (read-only use; the
// table itself is never mutated after construction).
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// ComputeSimilarity scores queryFP against itemFP across all 13 slots,
// each slot's score produced by its declared metric (fingerprint.Metric).
func (e *Engine) ComputeSimilarity(queryFP, itemFP fingerprint.Fingerprint) PerSpaceScores {
	var scores PerSpaceScores
	for _, spec := range fingerprint.SlotSpecs {
		scores[spec.Slot] = scoreSlot(spec, queryFP, itemFP)
	}
	return scores
}

func scoreSlot(spec fingerprint.SlotSpec, queryFP, itemFP fingerprint.Fingerprint) float64 {
	switch spec.Rep {
	case fingerprint.RepDense:
		q, _ := queryFP.Dense(spec.Slot)
		d, _ := itemFP.Dense(spec.Slot)
		switch spec.Metric {
		case fingerprint.MetricAsymmetricCosine:
			return metric.AsymmetricCosine([]float32(q), []float32(d))
		default:
			return metric.Cosine([]float32(q), []float32(d))
		}
	case fingerprint.RepSparse:
		q, _ := queryFP.Sparse(spec.Slot)
		d, _ := itemFP.Sparse(spec.Slot)
		return metric.SparseCosine(q.Indices, q.Values, d.Indices, d.Values)
	case fingerprint.RepTokenLevel:
		q, _ := queryFP.Tokens(spec.Slot)
		d, _ := itemFP.Tokens(spec.Slot)
		return metric.SymmetricMaxSim([][]float32(q), [][]float32(d))
	default:
		return 0
	}
}

// IsRelevant implements the ANY-over-threshold gate (ARCH: ANY-semantics,
// deliberate for recall): true iff any slot's score exceeds its high
// threshold, strictly. Temporal slots participate in this gate even
// though they are excluded from the weighted aggregates below.
func (e *Engine) IsRelevant(scores PerSpaceScores) bool {
	for slot := fingerprint.Slot(0); slot < fingerprint.NumSlots; slot++ {
		if scores[slot] > e.thresholds.High[slot] {
			return true
		}
	}
	return false
}

// MatchingSpaces returns the slots whose score strictly exceeds their
// high threshold, in slot order.
func (e *Engine) MatchingSpaces(scores PerSpaceScores) []fingerprint.Slot {
	var out []fingerprint.Slot
	for slot := fingerprint.Slot(0); slot < fingerprint.NumSlots; slot++ {
		if scores[slot] > e.thresholds.High[slot] {
			out = append(out, slot)
		}
	}
	return out
}

// WeightedSimilarity computes Σ w_i·s_i / Σ w_i over slots with w_i > 0
// (i.e. every non-temporal slot), clamped to [0,1]. Temporal slots are
// skipped entirely because their category weight is 0: raising a
// temporal score alone can never move this aggregate.
func (e *Engine) WeightedSimilarity(scores PerSpaceScores) float64 {
	var num, den float64
	for _, spec := range fingerprint.SlotSpecs {
		w := fingerprint.CategoryWeight(spec.Category)
		if w <= 0 {
			continue
		}
		num += w * scores[spec.Slot]
		den += w
	}
	if den == 0 {
		return 0
	}
	return clamp01(num / den)
}

// RelevanceScore computes the category-weighted "how far above gate"
// normalization: Σ w_i·max(0, s_i−high_i) / Σ w_i·(1−high_i) over
// non-temporal slots, clamped to [0,1]. Yields 0 when no space exceeds
// its own high threshold, even if every temporal score is high
// (temporal slots are skipped here just as in WeightedSimilarity).
func (e *Engine) RelevanceScore(scores PerSpaceScores) float64 {
	var num, den float64
	for _, spec := range fingerprint.SlotSpecs {
		w := fingerprint.CategoryWeight(spec.Category)
		if w <= 0 {
			continue
		}
		high := e.thresholds.High[spec.Slot]
		over := scores[spec.Slot] - high
		if over > 0 {
			num += w * over
		}
		den += w * (1 - high)
	}
	if den == 0 {
		return 0
	}
	return clamp01(num / den)
}

// IsBelowLowThreshold reports whether a slot's score sits below its
// low (divergence) threshold.
func (e *Engine) IsBelowLowThreshold(slot fingerprint.Slot, score float64) bool {
	return score < e.thresholds.Low[slot]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
