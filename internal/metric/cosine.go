// Package metric implements the small palette of pure distance functions
// the rest of the core is built on: cosine, asymmetric-cosine,
// jaccard-over-sparse, sparse-cosine, and max-sim. All of them fail soft
// on empty/degenerate input — they return 0, never panic or error —
// because they sit on retrieval hot paths where a single bad vector must
// not abort a whole query.
package metric

import (
	"math"

	"github.com/viterin/vek"
)

// Cosine returns the cosine similarity of two equal-length dense
// vectors. Returns 0 if either vector has zero norm, or if the lengths
// differ (a defensive case that should not occur past validation).
//
// The dot product and norms are computed with vek's SIMD-accelerated
// routines, since this is the hottest primitive in the engine: it runs
// once per candidate per dense slot in stages 3 and 5.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	dot := float64(vek.Dot(a, b))
	na := float64(vek.Dot(a, a))
	nb := float64(vek.Dot(b, b))
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// AsymmetricCosine scores query q against document d where the relation
// is not symmetric (used for the causal slot, where "q caused d" is a
// different claim than "d caused q"). It is the ordinary cosine scaled
// by min(1, |d|/|q|): a document whose causal vector is much weaker in
// magnitude than the query's is penalized, even if it points in the same
// direction.
func AsymmetricCosine(q, d []float32) float64 {
	if len(q) != len(d) || len(q) == 0 {
		return 0
	}
	cos := Cosine(q, d)
	if cos == 0 {
		return 0
	}
	qNorm := math.Sqrt(float64(vek.Dot(q, q)))
	dNorm := math.Sqrt(float64(vek.Dot(d, d)))
	if qNorm == 0 {
		return 0
	}
	factor := dNorm / qNorm
	if factor > 1 {
		factor = 1
	}
	return cos * factor
}
