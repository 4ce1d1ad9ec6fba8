// Package similarity implements the multi-space similarity engine:
// per-slot scoring dispatched by the slot's declared metric, an
// ANY-over-threshold relevance gate, and the two category-weighted
// aggregates (weighted similarity, relevance score). Weights come from
// fingerprint.CategoryWeight, a fixed table — there is no
// runtime-editable weighting path.
package similarity

import "github.com/contextmemory/workmem/internal/fingerprint"

// Thresholds holds the per-slot high ("matching") and low ("divergence")
// gates. The table is keyed by slot, not by category: each slot has its
// own threshold pair even where several slots share the same category.
type Thresholds struct {
	High [fingerprint.NumSlots]float64
	Low  [fingerprint.NumSlots]float64
}

// DefaultThresholds returns the engine's fixed threshold table.
func DefaultThresholds() Thresholds {
	var t Thresholds
	t.High[fingerprint.SlotSemantic] = 0.75
	t.High[fingerprint.SlotTemporalRecent] = 0.70
	t.High[fingerprint.SlotTemporalPeriodic] = 0.70
	t.High[fingerprint.SlotTemporalPositional] = 0.70
	t.High[fingerprint.SlotCausal] = 0.70
	t.High[fingerprint.SlotSparse] = 0.60
	t.High[fingerprint.SlotCode] = 0.80
	t.High[fingerprint.SlotRelationalA] = 0.70
	t.High[fingerprint.SlotStructural] = 0.70
	t.High[fingerprint.SlotMultimodal] = 0.70
	t.High[fingerprint.SlotRelationalB] = 0.70
	t.High[fingerprint.SlotLateInteraction] = 0.70
	t.High[fingerprint.SlotKeywordSparse] = 0.60

	t.Low[fingerprint.SlotSemantic] = 0.30
	t.Low[fingerprint.SlotTemporalRecent] = 0.30
	t.Low[fingerprint.SlotTemporalPeriodic] = 0.30
	t.Low[fingerprint.SlotTemporalPositional] = 0.30
	t.Low[fingerprint.SlotCausal] = 0.25
	t.Low[fingerprint.SlotSparse] = 0.20
	t.Low[fingerprint.SlotCode] = 0.35
	t.Low[fingerprint.SlotRelationalA] = 0.30
	t.Low[fingerprint.SlotStructural] = 0.30
	t.Low[fingerprint.SlotMultimodal] = 0.30
	t.Low[fingerprint.SlotRelationalB] = 0.30
	t.Low[fingerprint.SlotLateInteraction] = 0.30
	t.Low[fingerprint.SlotKeywordSparse] = 0.20

	return t
}
