package cmd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/contextmemory/workmem/internal/config"
	"github.com/contextmemory/workmem/internal/divergence"
	"github.com/contextmemory/workmem/internal/embed"
	"github.com/contextmemory/workmem/internal/index"
	"github.com/contextmemory/workmem/internal/memory"
	"github.com/contextmemory/workmem/internal/pipeline"
	"github.com/contextmemory/workmem/internal/similarity"
	"github.com/contextmemory/workmem/internal/store"
)

// runtime bundles the pieces a single hook-command invocation needs: a
// durable store, a multi-space index and BM25 index fed by that store, a
// corpus-wide retrieval pipeline over both, a similarity engine tuned
// from the on-disk memory config, a divergence detector, a session
// façade for the divergence/count paths, and an embedding provider.
// Each command opens one, does its work, and closes it before exiting —
// there is no long-lived daemon process behind this CLI; every
// invocation is a synchronous, self-contained command.
type runtime struct {
	cfg         *config.MemoryConfig
	itemStore   store.ItemStore
	index       *index.MultiSpaceIndex
	bm25        store.BM25Index
	pipeline    *pipeline.Pipeline
	engine      *similarity.Engine
	detector    *divergence.Detector
	facade      *memory.Facade
	provider    embed.Provider
	snapshotDir string
	manifest    store.Manifest
}

func openRuntime(dataDir string) (*runtime, error) {
	cfg, err := config.LoadMemoryConfig(dataDir)
	if err != nil {
		return nil, err
	}

	itemStore, err := store.NewSQLiteItemStore(filepath.Join(dataDir, "items.db"))
	if err != nil {
		return nil, err
	}

	manifest := store.BuildManifest(cfg.CategoryWeights, cfg.HighThresholds, cfg.LowThresholds)
	snapshotDir := filepath.Join(dataDir, "index")

	idx, err := index.New()
	if err != nil {
		_ = itemStore.Close()
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(snapshotDir, store.ManifestFileName)); err == nil {
		if err := idx.Load(snapshotDir, manifest); err != nil {
			_ = itemStore.Close()
			return nil, err
		}
	}

	bm25Base := filepath.Join(dataDir, "bm25")
	backend := store.DetectBM25Backend(bm25Base)
	if backend == "" {
		backend = store.BM25BackendSQLite
	}
	bm25, err := store.NewBM25IndexWithBackend(bm25Base, store.BM25Config{K1: cfg.BM25K1, B: cfg.BM25B}, string(backend))
	if err != nil {
		_ = itemStore.Close()
		return nil, err
	}

	thresholds := similarity.Thresholds{High: cfg.HighThresholds, Low: cfg.LowThresholds}
	engine := similarity.NewWithThresholds(thresholds)
	detector := divergence.New(engine,
		divergence.WithLookback(cfg.DivergenceLookback),
		divergence.WithMaxRecent(cfg.DivergenceMaxRecent),
	)
	facade := memory.New(itemStore, engine, detector)

	pl := pipeline.New(idx, itemStore, engine, pipelineConfig(cfg), pipeline.WithBM25(bm25))

	base := embed.NewStaticProvider().WithTimeouts(cfg.PerSlotEmbedTimeout, cfg.TotalEmbedTimeout)
	var provider embed.Provider = embed.NewCachedProvider(base, embed.DefaultFingerprintCacheSize)

	return &runtime{
		cfg:         cfg,
		itemStore:   itemStore,
		index:       idx,
		bm25:        bm25,
		pipeline:    pl,
		engine:      engine,
		detector:    detector,
		facade:      facade,
		provider:    provider,
		snapshotDir: snapshotDir,
		manifest:    manifest,
	}, nil
}

// pipelineConfig derives the pipeline's tunable surface from the
// on-disk memory config, starting from pipeline.DefaultConfig() for
// every field the config surface doesn't expose directly.
func pipelineConfig(cfg *config.MemoryConfig) pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.SparsePrefilterEnabled = cfg.SparsePrefilterEnabled
	pc.SparseWeight = cfg.SparseWeight
	pc.BM25K1 = cfg.BM25K1
	pc.BM25B = cfg.BM25B
	pc.MaxCandidates = cfg.MaxCandidates
	pc.MatryoshkaTruncationDim = cfg.MatryoshkaTruncationDim
	pc.MatryoshkaAdaptiveDim = cfg.MatryoshkaAdaptiveDim
	pc.MatryoshkaMinRecall = cfg.MatryoshkaMinRecall
	pc.RRFK = cfg.RRFK
	pc.AlignmentPurposeWeight = cfg.AlignmentPurposeWeight
	pc.AlignmentGoalWeight = cfg.AlignmentGoalWeight
	pc.PassThroughK = cfg.AlignmentPassThroughK
	pc.LateInteractionEnabled = cfg.LateInteractionEnabled
	pc.LateInteractionWeight = cfg.LateInteractionWeight
	pc.MisalignmentThreshold = cfg.MisalignmentThreshold
	pc.FilterMisaligned = cfg.FilterMisaligned
	return pc
}

// Close persists the index snapshot, closes the BM25 index, and closes
// the item store, collecting every failure rather than stopping at the
// first one: a command that fails to persist its index should still
// release its BM25 and SQLite file handles.
func (rt *runtime) Close() error {
	return errors.Join(
		rt.index.Persist(rt.snapshotDir, rt.manifest),
		rt.bm25.Close(),
		rt.itemStore.Close(),
	)
}
