// Package memory implements the session/retriever façade: a synchronous
// orchestrator wrapping a shared durable store, a similarity engine, and
// a divergence detector. It exposes retrieve/divergence/count operations
// and never returns an error for "nothing found" — empty results are
// ordinary outputs.
package memory

import (
	"context"
	"sort"
	"time"

	"github.com/contextmemory/workmem/internal/divergence"
	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/similarity"
	"github.com/contextmemory/workmem/internal/store"
)

// Facade is the synchronous session/retriever orchestrator. It holds no
// per-call state: the store is the durable owner of all data, and the
// engine/detector are pure data, so Facade is safe to share across
// goroutines without its own locking.
type Facade struct {
	store    store.ItemStore
	engine   *similarity.Engine
	detector *divergence.Detector
}

// New builds a Facade over the given store, similarity engine, and
// divergence detector.
func New(itemStore store.ItemStore, engine *similarity.Engine, detector *divergence.Detector) *Facade {
	return &Facade{store: itemStore, engine: engine, detector: detector}
}

// RetrieveSimilar runs the minimal session-scoped pipeline named in spec
// §4.10: scan every item in the session, keep only those the similarity
// engine judges relevant (ANY-over-threshold gate), sort by descending
// relevance, and truncate to limit. A large-corpus deployment substitutes
// the 5-stage pipeline (internal/pipeline) for this scan; the façade
// contract — same ranking law, same determinism — is identical either
// way.
func (f *Facade) RetrieveSimilar(ctx context.Context, queryFP fingerprint.Fingerprint, sessionID string, limit int) ([]similarity.SimilarityResult, error) {
	items, err := f.store.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	results := make([]similarity.SimilarityResult, 0, len(items))
	createdAt := make(map[string]time.Time, len(items))
	for _, item := range items {
		scores := f.engine.ComputeSimilarity(queryFP, item.Fingerprint)
		if !f.engine.IsRelevant(scores) {
			continue
		}
		matching := f.engine.MatchingSpaces(scores)
		results = append(results, similarity.SimilarityResult{
			ItemID:            item.ID,
			Scores:            scores,
			MatchingSpaces:    matching,
			WeightedAggregate: f.engine.WeightedSimilarity(scores),
			RelevanceScore:    f.engine.RelevanceScore(scores),
			SpaceCount:        len(matching),
		})
		createdAt[item.ID] = item.CreatedAt
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if a.WeightedAggregate != b.WeightedAggregate {
			return a.WeightedAggregate > b.WeightedAggregate
		}
		ta, tb := createdAt[a.ItemID], createdAt[b.ItemID]
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return a.ItemID < b.ItemID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetRecentMemories converts a session's recent items (within the
// detector's configured lookback window, capped at its MaxRecent) into
// the divergence package's input type.
func (f *Facade) GetRecentMemories(ctx context.Context, sessionID string) ([]divergence.RecentItem, error) {
	items, err := f.store.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-f.detector.Lookback())
	recent := make([]divergence.RecentItem, 0, len(items))
	for _, item := range items {
		if item.CreatedAt.Before(cutoff) {
			continue
		}
		recent = append(recent, divergence.RecentItem{
			ID:          item.ID,
			Fingerprint: item.Fingerprint,
			Summary:     item.Content,
			CreatedAt:   item.CreatedAt,
		})
	}

	// Keep only the most recent MaxRecent of the lookback-filtered slice;
	// items are already ordered ascending by GetBySession.
	max := f.detector.MaxRecent()
	if max > 0 && len(recent) > max {
		recent = recent[len(recent)-max:]
	}
	return recent, nil
}

// CheckDivergence composes GetRecentMemories with the detector: it is
// never an error for a session to have no recent memories or no
// divergence — both yield an empty report.
func (f *Facade) CheckDivergence(ctx context.Context, queryFP fingerprint.Fingerprint, sessionID string) (divergence.Report, error) {
	recent, err := f.GetRecentMemories(ctx, sessionID)
	if err != nil {
		return divergence.Report{}, err
	}
	return f.detector.Check(queryFP, recent), nil
}

// SessionMemoryCount returns the number of items stored under sessionID.
func (f *Facade) SessionMemoryCount(ctx context.Context, sessionID string) (int, error) {
	items, err := f.store.GetBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// TotalMemoryCount returns the number of items across all sessions.
func (f *Facade) TotalMemoryCount(ctx context.Context) (int64, error) {
	return f.store.Count(ctx)
}
