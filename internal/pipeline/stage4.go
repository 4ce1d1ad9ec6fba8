package pipeline

import (
	"sort"

	"github.com/contextmemory/workmem/internal/fingerprint"
)

// Goal is a configured active goal the alignment stage scores candidates
// against. An empty goal set makes goal-alignment contribute 0 for every
// candidate.
type Goal struct {
	Purpose fingerprint.Purpose
	Weight  float64
}

// stage4Alignment computes purpose alignment (cosine between query and
// item purpose vectors) and goal alignment (best match against configured
// goals, 0 if none), combines them with the stage-3 score under fixed
// weights, and keeps the top cfg.PassThroughK survivors.
func stage4Alignment(queryFP fingerprint.Fingerprint, stage3 []scored, goals []Goal, cfg Config) []scored {
	qp := fingerprint.ComputePurpose(queryFP)

	// Normalize stage-3 scores to [0,1] so the fixed 60/20/20 blend isn't
	// dominated by RRF's small absolute magnitudes.
	var maxStage3 float64
	for _, s := range stage3 {
		if s.stage3Score > maxStage3 {
			maxStage3 = s.stage3Score
		}
	}

	for i := range stage3 {
		ip := fingerprint.ComputePurpose(stage3[i].item.Fingerprint)
		purposeAlignment := qp.Cosine(ip)

		goalAlignment := 0.0
		for _, g := range goals {
			if c := ip.Cosine(g.Purpose); c > goalAlignment {
				goalAlignment = c
			}
		}
		stage3[i].goalAlignment = goalAlignment

		normalizedStage3 := 0.0
		if maxStage3 > 0 {
			normalizedStage3 = stage3[i].stage3Score / maxStage3
		}

		stage3[i].stage4Score = cfg.AlignmentRRFWeight*normalizedStage3 +
			cfg.AlignmentPurposeWeight*purposeAlignment +
			cfg.AlignmentGoalWeight*goalAlignment
	}

	sort.Slice(stage3, func(i, j int) bool {
		if stage3[i].stage4Score != stage3[j].stage4Score {
			return stage3[i].stage4Score > stage3[j].stage4Score
		}
		if !stage3[i].item.CreatedAt.Equal(stage3[j].item.CreatedAt) {
			return stage3[i].item.CreatedAt.Before(stage3[j].item.CreatedAt)
		}
		return stage3[i].item.ID < stage3[j].item.ID
	})

	if len(stage3) > cfg.PassThroughK {
		stage3 = stage3[:cfg.PassThroughK]
	}
	return stage3
}
