package pipeline

import (
	"context"
	"time"

	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/index"
	"github.com/contextmemory/workmem/internal/similarity"
	"github.com/contextmemory/workmem/internal/store"
)

// Budget is the end-to-end design target of §4.8: at ~1M items the
// pipeline aims to complete within this window. It is a design target,
// not a hard deadline — exceeding it is reported in Stats, never
// aborted mid-stage, since stage 3 is the minimum needed for a ranking.
const Budget = 60 * time.Millisecond

// Pipeline is the 5-stage retrieval pipeline over a shared index, item
// store, and similarity engine. It never returns an error for "nothing
// found" at any stage; errors only propagate from the index or store.
type Pipeline struct {
	idx      *index.MultiSpaceIndex
	store    store.ItemStore
	engine   *similarity.Engine
	bm25     store.BM25Index
	cfg      Config
	goals    []Goal
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// WithBM25 wires a lexical BM25 index into stage 1's convex combination.
func WithBM25(bm25 store.BM25Index) Option { return func(p *Pipeline) { p.bm25 = bm25 } }

// WithGoals sets the active goals stage 4 scores candidates against.
func WithGoals(goals []Goal) Option { return func(p *Pipeline) { p.goals = goals } }

// New builds a Pipeline with the given config (DefaultConfig() if unsure).
func New(idx *index.MultiSpaceIndex, itemStore store.ItemStore, engine *similarity.Engine, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{idx: idx, store: itemStore, engine: engine, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Retrieve runs all five stages in order and returns the final ranked
// results plus execution stats. Stages 1-3 always run (stage 3 is what
// produces the minimal ranking); stages 4-5 are optional refinements that
// still run unless config disables late interaction.
func (p *Pipeline) Retrieve(ctx context.Context, queryText string, queryFP fingerprint.Fingerprint) ([]Result, Stats, error) {
	start := time.Now()
	var stats Stats

	stage1, err := stage1SparsePrefilter(ctx, p.idx, p.bm25, queryText, queryFP, p.cfg)
	if err != nil {
		return nil, stats, err
	}
	stats.Stage1Count = len(stage1)

	stage2, err := stage2MatryoshkaANN(p.idx, queryFP, stage1, p.cfg)
	if err != nil {
		return nil, stats, err
	}
	stats.Stage2Count = len(stage2)

	stage3, skipped, err := stage3RRFFusion(ctx, p.store, p.idx, p.engine, queryFP, stage2, p.cfg)
	if err != nil {
		return nil, stats, err
	}
	stats.Stage3Count = len(stage3)
	stats.SkippedSlots = skipped

	stage4 := stage4Alignment(queryFP, stage3, p.goals, p.cfg)
	stats.Stage4Count = len(stage4)

	results := stage5LateInteraction(queryFP, stage4, p.idx, p.engine, p.cfg)
	stats.Stage5Count = len(results)

	stats.Elapsed = time.Since(start)
	stats.BudgetExceeded = stats.Elapsed > Budget
	return results, stats, nil
}
