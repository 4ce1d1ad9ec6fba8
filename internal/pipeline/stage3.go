package pipeline

import (
	"context"
	"sort"

	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/index"
	"github.com/contextmemory/workmem/internal/similarity"
	"github.com/contextmemory/workmem/internal/store"
)

// stage3RRFFusion reranks stage-2 survivors by Reciprocal Rank Fusion over
// each configured slot's per-item ranking: score(d) = Σ 1/(k+rank_i(d)+1).
// A slot whose index reports failed is skipped, never silently — the
// caller records it in Stats.SkippedSlots. RRF is safe over heterogeneous
// metrics because it fuses ranks, not raw scores (design note).
func stage3RRFFusion(ctx context.Context, itemStore store.ItemStore, idx *index.MultiSpaceIndex, engine *similarity.Engine, queryFP fingerprint.Fingerprint, stage2 []candidate, cfg Config) ([]scored, []fingerprint.Slot, error) {
	items := make([]scored, 0, len(stage2))
	for _, c := range stage2 {
		item, ok, err := itemStore.Get(ctx, c.id)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		scores := engine.ComputeSimilarity(queryFP, item.Fingerprint)
		items = append(items, scored{item: item, scores: scores})
	}

	var skipped []fingerprint.Slot
	rrf := make([]float64, len(items))
	k := float64(cfg.RRFK)

	for _, slot := range cfg.RRFSlots {
		if idx.IsFailed(slot) {
			skipped = append(skipped, slot)
			continue
		}
		order := make([]int, len(items))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			sa, sb := items[order[a]].scores[slot], items[order[b]].scores[slot]
			if sa != sb {
				return sa > sb
			}
			return items[order[a]].item.ID < items[order[b]].item.ID
		})
		switch cfg.FusionMode {
		case FusionWeightedSum:
			w := fingerprint.CategoryWeight(fingerprint.SlotSpecs[slot].Category)
			for i := range items {
				rrf[i] += w * items[i].scores[slot]
			}
		default: // FusionRRF and FusionRelativeScore both use rank fusion here;
			// relative-score normalization is approximated by RRF when no
			// raw-score calibration across spaces is configured.
			for rank, idxInItems := range order {
				rrf[idxInItems] += 1.0 / (k + float64(rank) + 1)
			}
		}
	}

	if cfg.UsePurposeWeighting {
		qp := fingerprint.ComputePurpose(queryFP)
		for i := range items {
			ip := fingerprint.ComputePurpose(items[i].item.Fingerprint)
			rrf[i] *= 1 + 0.2*qp.Cosine(ip)
		}
	}

	for i := range items {
		items[i].stage3Score = rrf[i]
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].stage3Score != items[j].stage3Score {
			return items[i].stage3Score > items[j].stage3Score
		}
		wi := engine.WeightedSimilarity(items[i].scores)
		wj := engine.WeightedSimilarity(items[j].scores)
		if wi != wj {
			return wi > wj
		}
		if !items[i].item.CreatedAt.Equal(items[j].item.CreatedAt) {
			return items[i].item.CreatedAt.Before(items[j].item.CreatedAt)
		}
		return items[i].item.ID < items[j].item.ID
	})

	if len(items) > cfg.Stage3Candidates {
		items = items[:cfg.Stage3Candidates]
	}
	return items, skipped, nil
}
