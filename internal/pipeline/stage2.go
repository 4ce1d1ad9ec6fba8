package pipeline

import (
	"sort"

	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/index"
)

// stage2MatryoshkaANN runs dense ANN on the Matryoshka-truncated prefix of
// the semantic slot, restricted to the ids stage 1 produced (post-filter
// via hash-set intersection), and returns up to cfg.Stage2Candidates ids.
// The prefix is used exactly as produced by the provider — never
// retrained or PCA-reduced — per the design note on Matryoshka truncation.
func stage2MatryoshkaANN(idx *index.MultiSpaceIndex, queryFP fingerprint.Fingerprint, stage1 []candidate, cfg Config) ([]candidate, error) {
	allowed := make(map[string]struct{}, len(stage1))
	for _, c := range stage1 {
		allowed[c.id] = struct{}{}
	}

	semantic, _ := queryFP.Dense(fingerprint.SlotSemantic)
	prefix := make([]float32, index.MatryoshkaDim)
	copy(prefix, []float32(semantic))

	oversample := cfg.Stage2Candidates * cfg.Stage2OversampleFactor
	if oversample <= 0 {
		oversample = cfg.Stage2Candidates
	}
	if len(allowed) > 0 && oversample < len(allowed) {
		oversample = len(allowed)
	}

	hits, err := idx.SearchMatryoshka(prefix, oversample)
	if err != nil {
		return nil, err
	}

	out := make([]candidate, 0, cfg.Stage2Candidates)
	for _, h := range hits {
		if len(allowed) > 0 {
			if _, ok := allowed[h.ID]; !ok {
				continue
			}
		}
		out = append(out, candidate{id: h.ID, raw: h.Similarity})
		if len(out) >= cfg.Stage2Candidates {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].raw != out[j].raw {
			return out[i].raw > out[j].raw
		}
		return out[i].id < out[j].id
	})
	return out, nil
}
