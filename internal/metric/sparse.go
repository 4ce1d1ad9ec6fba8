package metric

import "math"

// JaccardSparse computes |A∩B| / |A∪B| over two sorted-unique index
// lists, ignoring values. If both are empty, returns 0.
func JaccardSparse(aIdx, bIdx []uint16) float64 {
	if len(aIdx) == 0 && len(bIdx) == 0 {
		return 0
	}
	intersection, union := 0, 0
	i, j := 0, 0
	for i < len(aIdx) && j < len(bIdx) {
		switch {
		case aIdx[i] == bIdx[j]:
			intersection++
			union++
			i++
			j++
		case aIdx[i] < bIdx[j]:
			union++
			i++
		default:
			union++
			j++
		}
	}
	union += (len(aIdx) - i) + (len(bIdx) - j)
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// SparseCosine computes the cosine similarity between two sparse vectors
// given as sorted-unique (indices, values) pairs: dot product over the
// sorted merge, divided by the L2 norms of each side. Returns 0 if either
// side is empty or has zero norm.
func SparseCosine(aIdx []uint16, aVal []float32, bIdx []uint16, bVal []float32) float64 {
	if len(aIdx) == 0 || len(bIdx) == 0 {
		return 0
	}

	var dot, na, nb float64
	i, j := 0, 0
	for i < len(aIdx) && j < len(bIdx) {
		switch {
		case aIdx[i] == bIdx[j]:
			dot += float64(aVal[i]) * float64(bVal[j])
			i++
			j++
		case aIdx[i] < bIdx[j]:
			i++
		default:
			j++
		}
	}
	for _, v := range aVal {
		na += float64(v) * float64(v)
	}
	for _, v := range bVal {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
