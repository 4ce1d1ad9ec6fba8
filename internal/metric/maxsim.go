package metric

// MaxSim computes the late-interaction score between a query token
// matrix Q and a document token matrix D: for each query token vector,
// take the max cosine similarity over all document token vectors, then
// average those maxima. Returns 0 if either side is empty.
func MaxSim(q, d [][]float32) float64 {
	if len(q) == 0 || len(d) == 0 {
		return 0
	}
	var sum float64
	for _, qv := range q {
		best := 0.0
		for _, dv := range d {
			if s := Cosine(qv, dv); s > best {
				best = s
			}
		}
		sum += best
	}
	return sum / float64(len(q))
}

// SymmetricMaxSim averages MaxSim(Q,D) and MaxSim(D,Q), for contexts
// where neither side is privileged as "the query" (stage 5's rerank).
func SymmetricMaxSim(q, d [][]float32) float64 {
	if len(q) == 0 || len(d) == 0 {
		return 0
	}
	return (MaxSim(q, d) + MaxSim(d, q)) / 2
}
