package pipeline

import (
	"sort"

	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/index"
	"github.com/contextmemory/workmem/internal/metric"
	"github.com/contextmemory/workmem/internal/similarity"
)

// stage5LateInteraction applies symmetric MaxSim on the token-level slot
// against each stage-4 survivor, blending it with the stage-4 score. The
// token-level slot is optional at runtime: if either side's token-level
// slot is empty, the stage is skipped for that item and the stage-4
// score is used directly. The coarse late-interaction graph narrows
// which survivors are even considered for the exact rerank; survivors
// the coarse search doesn't return (or a failed coarse search) fall
// back to the stage-4 score untouched. Items whose goal-alignment sits
// below the misalignment threshold are flagged, and optionally filtered
// out.
func stage5LateInteraction(queryFP fingerprint.Fingerprint, stage4 []scored, idx *index.MultiSpaceIndex, engine *similarity.Engine, cfg Config) []Result {
	queryTokens, _ := queryFP.Tokens(fingerprint.SlotLateInteraction)

	narrowed := make(map[string]struct{}, len(stage4))
	if cfg.LateInteractionEnabled && !queryTokens.IsEmpty() && len(stage4) > 0 {
		pooled := index.MeanPool(queryTokens, fingerprint.SlotSpecs[fingerprint.SlotLateInteraction].Dimension)
		hits, err := idx.SearchLateInteraction(pooled, len(stage4))
		if err != nil {
			for _, s := range stage4 {
				narrowed[s.item.ID] = struct{}{}
			}
		} else {
			for _, h := range hits {
				narrowed[h.ID] = struct{}{}
			}
		}
	}

	for i := range stage4 {
		final := stage4[i].stage4Score
		if _, ok := narrowed[stage4[i].item.ID]; ok {
			itemTokens, _ := stage4[i].item.Fingerprint.Tokens(fingerprint.SlotLateInteraction)
			if !itemTokens.IsEmpty() {
				maxsim := metric.SymmetricMaxSim([][]float32(queryTokens), [][]float32(itemTokens))
				final = (1-cfg.LateInteractionWeight)*stage4[i].stage4Score + cfg.LateInteractionWeight*maxsim
			}
		}
		stage4[i].finalScore = final
		stage4[i].misaligned = stage4[i].goalAlignment < cfg.MisalignmentThreshold
	}

	filtered := stage4
	if cfg.FilterMisaligned {
		filtered = filtered[:0]
		for _, s := range stage4 {
			if !s.misaligned {
				filtered = append(filtered, s)
			}
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].finalScore != filtered[j].finalScore {
			return filtered[i].finalScore > filtered[j].finalScore
		}
		if !filtered[i].item.CreatedAt.Equal(filtered[j].item.CreatedAt) {
			return filtered[i].item.CreatedAt.Before(filtered[j].item.CreatedAt)
		}
		return filtered[i].item.ID < filtered[j].item.ID
	})

	if len(filtered) > cfg.FinalK {
		filtered = filtered[:cfg.FinalK]
	}

	out := make([]Result, len(filtered))
	for i, s := range filtered {
		out[i] = Result{
			ItemID:         s.item.ID,
			SessionID:      s.item.SessionID,
			Content:        s.item.Content,
			CreatedAt:      s.item.CreatedAt,
			Scores:         s.scores,
			MatchingSpaces: engine.MatchingSpaces(s.scores),
			Stage3Score:    s.stage3Score,
			Stage4Score:    s.stage4Score,
			FinalScore:     s.finalScore,
			GoalAlignment:  s.goalAlignment,
			Misaligned:     s.misaligned,
		}
	}
	return out
}
