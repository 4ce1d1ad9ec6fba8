package injection

import "sort"

// Pack ranks candidates by descending priority and greedy-fills budget,
// one sub-budget per category plus the overall total. A candidate whose
// token count would overflow its category's sub-budget or the total
// budget is skipped entirely, never partially included.
func Pack(candidates []InjectionCandidate, budget TokenBudget) Result {
	ranked := make([]InjectionCandidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Priority = priority(ranked[i])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
		}
		return ranked[i].ItemID < ranked[j].ItemID
	})

	var result Result
	var usedTotal int
	var usedByCategory [4]int

	for _, c := range ranked {
		cat := int(c.Category)
		if usedTotal+c.TokenCount > budget.Total {
			continue
		}
		if usedByCategory[cat]+c.TokenCount > budget.Sub[cat] {
			continue
		}
		usedTotal += c.TokenCount
		usedByCategory[cat] += c.TokenCount
		result.Selected = append(result.Selected, c)
	}

	result.TokensUsed = usedTotal
	result.TokensByCategory = usedByCategory
	return result
}

// Filter drops candidates whose bucket is BucketExcluded (weighted
// agreement below the single-space-match floor), except divergence-alert
// candidates, which always pass regardless of weighted agreement.
func Filter(candidates []InjectionCandidate) []InjectionCandidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.IsDivergenceAlert || c.Bucket != BucketExcluded {
			out = append(out, c)
		}
	}
	return out
}
