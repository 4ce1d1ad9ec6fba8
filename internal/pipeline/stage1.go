package pipeline

import (
	"context"
	"sort"

	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/index"
	"github.com/contextmemory/workmem/internal/store"
)

// stage1SparsePrefilter combines a BM25-style lexical score over queryText
// with a dot-product score against the learned sparse slot (12), via a
// configurable convex combination (default 0.5 each), and returns up to
// cfg.MaxCandidates ids ranked by the combined score. If the BM25 index is
// nil, the learned-sparse half alone drives ranking.
func stage1SparsePrefilter(ctx context.Context, idx *index.MultiSpaceIndex, bm25 store.BM25Index, queryText string, queryFP fingerprint.Fingerprint, cfg Config) ([]candidate, error) {
	sparseQuery, _ := queryFP.Sparse(fingerprint.SlotKeywordSparse)

	overfetch := cfg.MaxCandidates * 2
	if overfetch <= 0 {
		overfetch = cfg.MaxCandidates
	}

	sparseHits, err := idx.SearchSparse(fingerprint.SlotKeywordSparse, sparseQuery, overfetch)
	if err != nil {
		return nil, err
	}
	sparseScores := make(map[string]float64, len(sparseHits))
	for _, h := range sparseHits {
		sparseScores[h.ID] = h.Similarity
	}

	bm25Scores := make(map[string]float64)
	if bm25 != nil && queryText != "" {
		hits, err := bm25.Search(ctx, queryText, overfetch)
		if err == nil {
			for _, h := range hits {
				bm25Scores[h.DocID] = h.Score
			}
		}
	}

	maxSparse := maxOf(sparseScores)
	maxBM25 := maxOf(bm25Scores)

	combined := make(map[string]float64)
	for id := range sparseScores {
		combined[id] = 0
	}
	for id := range bm25Scores {
		combined[id] = 0
	}
	sparseWeight := cfg.SparseWeight
	bm25Weight := 1 - sparseWeight
	for id := range combined {
		var s, b float64
		if maxSparse > 0 {
			s = sparseScores[id] / maxSparse
		}
		if maxBM25 > 0 {
			b = bm25Scores[id] / maxBM25
		}
		combined[id] = sparseWeight*s + bm25Weight*b
	}

	ids := make([]string, 0, len(combined))
	for id := range combined {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if combined[ids[i]] != combined[ids[j]] {
			return combined[ids[i]] > combined[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > cfg.MaxCandidates {
		ids = ids[:cfg.MaxCandidates]
	}

	out := make([]candidate, len(ids))
	for i, id := range ids {
		out[i] = candidate{id: id, raw: combined[id]}
	}
	return out, nil
}

func maxOf(m map[string]float64) float64 {
	var max float64
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}
