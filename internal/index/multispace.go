// Package index implements the per-space index substrate: one HNSW graph
// per dense fingerprint slot (plus two auxiliary HNSW graphs — the
// Matryoshka-truncated semantic prefix and a mean-pooled late-interaction
// coarse index), and one inverted posting-list index per sparse slot.
// MultiSpaceIndex composes all of these behind a single atomic contract,
// grounded on the durable store's sequential fail-fast composition pattern
// but extended with rollback: add() either lands in every applicable space
// or in none of them.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	amanerrors "github.com/contextmemory/workmem/internal/errors"
	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/store"
)

// MatryoshkaDim is the truncation width of the auxiliary HNSW graph built
// on the semantic slot's prefix. Design notes forbid retraining or PCA:
// the prefix is used exactly as produced by the embedding provider.
const MatryoshkaDim = 128

// Health describes the operating state of one slot's index.
type Health string

const (
	HealthHealthy    Health = "healthy"
	HealthFailed     Health = "failed"
	HealthRebuilding Health = "rebuilding"
)

// SlotStatus reports the per-slot state returned by Status.
type SlotStatus struct {
	Slot         fingerprint.Slot
	ElementCount int
	Health       Health
}

// ScoredID is one (id, similarity) search result.
type ScoredID struct {
	ID         string
	Similarity float64
}

// MultiSpaceIndex fans a fingerprint out across 12 HNSW graphs (10 direct
// dense slots + the Matryoshka prefix graph + the late-interaction
// coarse graph) and 2 sparse posting-list indexes (slots 5 and 12).
type MultiSpaceIndex struct {
	// lockOrder fixes the slot iteration order for add(), so concurrent
	// adds never acquire the 13 per-slot locks in conflicting orders.
	lockOrder []fingerprint.Slot

	mu     map[fingerprint.Slot]*sync.RWMutex
	dense  map[fingerprint.Slot]*store.HNSWStore
	sparse map[fingerprint.Slot]*SparsePostingIndex

	matryoshkaMu    sync.RWMutex
	matryoshka      *store.HNSWStore
	lateInteractMu  sync.RWMutex
	lateInteraction *store.HNSWStore

	statusMu sync.RWMutex
	failed   map[fingerprint.Slot]bool
}

// New builds a MultiSpaceIndex with one HNSW graph per dense slot (at its
// declared dimension) and one posting-list index per sparse slot, plus the
// two auxiliary HNSW graphs.
func New() (*MultiSpaceIndex, error) {
	idx := &MultiSpaceIndex{
		mu:     make(map[fingerprint.Slot]*sync.RWMutex),
		dense:  make(map[fingerprint.Slot]*store.HNSWStore),
		sparse: make(map[fingerprint.Slot]*SparsePostingIndex),
		failed: make(map[fingerprint.Slot]bool),
	}

	for _, spec := range fingerprint.SlotSpecs {
		idx.lockOrder = append(idx.lockOrder, spec.Slot)
		idx.mu[spec.Slot] = &sync.RWMutex{}

		switch spec.Rep {
		case fingerprint.RepDense:
			hs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(spec.Dimension))
			if err != nil {
				return nil, fmt.Errorf("build hnsw store for slot %s: %w", spec.Name, err)
			}
			idx.dense[spec.Slot] = hs
		case fingerprint.RepSparse:
			idx.sparse[spec.Slot] = NewSparsePostingIndex()
		case fingerprint.RepTokenLevel:
			// scored via the late-interaction coarse graph below, not per-slot HNSW
		}
	}

	matryoshka, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(MatryoshkaDim))
	if err != nil {
		return nil, fmt.Errorf("build matryoshka store: %w", err)
	}
	idx.matryoshka = matryoshka

	lateInteraction, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(fingerprint.SlotSpecs[fingerprint.SlotLateInteraction].Dimension))
	if err != nil {
		return nil, fmt.Errorf("build late-interaction store: %w", err)
	}
	idx.lateInteraction = lateInteraction

	return idx, nil
}

// MeanPool reduces a token-level matrix to a single vector by averaging
// component-wise. It seeds the coarse late-interaction HNSW graph on Add
// and produces the comparable query vector for SearchLateInteraction;
// the precise score (stage 5) is computed by MaxSim directly on the
// token matrices of the narrowed candidate set, never from this pooled
// vector.
func MeanPool(tokens fingerprint.TokenMatrix, dim int) []float32 {
	pooled := make([]float32, dim)
	if len(tokens) == 0 {
		return pooled
	}
	for _, tok := range tokens {
		for i, v := range tok {
			pooled[i] += v
		}
	}
	inv := 1.0 / float32(len(tokens))
	for i := range pooled {
		pooled[i] *= inv
	}
	return pooled
}

// Add inserts one entry into every applicable space atomically: either all
// 13 slots (plus the two auxiliary graphs) succeed, or every slot that
// already succeeded is rolled back and the error propagates. Locks are
// acquired in fixed slot order to avoid deadlock against concurrent adds.
func (idx *MultiSpaceIndex) Add(id string, fp fingerprint.Fingerprint) error {
	if errs := fingerprint.Validate(fp); len(errs) > 0 {
		return fingerprint.ValidateErr(fp)
	}

	for _, slot := range idx.lockOrder {
		idx.mu[slot].Lock()
	}
	idx.matryoshkaMu.Lock()
	idx.lateInteractMu.Lock()
	defer func() {
		idx.lateInteractMu.Unlock()
		idx.matryoshkaMu.Unlock()
		for i := len(idx.lockOrder) - 1; i >= 0; i-- {
			idx.mu[idx.lockOrder[i]].Unlock()
		}
	}()

	inserted := make([]fingerprint.Slot, 0, fingerprint.NumSlots)
	var matryoshkaInserted, lateInteractionInserted bool

	rollback := func(cause error) error {
		for _, slot := range inserted {
			idx.removeSlotLocked(id, slot)
		}
		if matryoshkaInserted {
			_ = idx.matryoshka.Delete(context.Background(), []string{id})
		}
		if lateInteractionInserted {
			_ = idx.lateInteraction.Delete(context.Background(), []string{id})
		}
		return amanerrors.Wrap(amanerrors.ErrCodeIndexRollback, cause).WithDetail("item_id", id)
	}

	for _, spec := range fingerprint.SlotSpecs {
		switch spec.Rep {
		case fingerprint.RepDense:
			v, _ := fp.Dense(spec.Slot)
			if err := idx.dense[spec.Slot].Add(context.Background(), []string{id}, [][]float32{v}); err != nil {
				idx.markFailed(spec.Slot)
				return rollback(fmt.Errorf("add slot %s: %w", spec.Name, err))
			}
			inserted = append(inserted, spec.Slot)
		case fingerprint.RepSparse:
			v, _ := fp.Sparse(spec.Slot)
			if err := idx.sparse[spec.Slot].Add(id, v); err != nil {
				idx.markFailed(spec.Slot)
				return rollback(fmt.Errorf("add slot %s: %w", spec.Name, err))
			}
			inserted = append(inserted, spec.Slot)
		case fingerprint.RepTokenLevel:
			tokens, _ := fp.Tokens(spec.Slot)
			pooled := MeanPool(tokens, spec.Dimension)
			if err := idx.lateInteraction.Add(context.Background(), []string{id}, [][]float32{pooled}); err != nil {
				idx.markFailed(spec.Slot)
				return rollback(fmt.Errorf("add slot %s coarse graph: %w", spec.Name, err))
			}
			lateInteractionInserted = true
			inserted = append(inserted, spec.Slot)
		}
	}

	semantic, _ := fp.Dense(fingerprint.SlotSemantic)
	prefix := make([]float32, MatryoshkaDim)
	copy(prefix, semantic)
	if err := idx.matryoshka.Add(context.Background(), []string{id}, [][]float32{prefix}); err != nil {
		return rollback(fmt.Errorf("add matryoshka prefix: %w", err))
	}
	matryoshkaInserted = true

	return nil
}

func (idx *MultiSpaceIndex) removeSlotLocked(id string, slot fingerprint.Slot) {
	spec := fingerprint.SlotSpecs[slot]
	switch spec.Rep {
	case fingerprint.RepDense:
		_ = idx.dense[slot].Delete(context.Background(), []string{id})
	case fingerprint.RepSparse:
		idx.sparse[slot].Remove(id)
	case fingerprint.RepTokenLevel:
		_ = idx.lateInteraction.Delete(context.Background(), []string{id})
	}
}

// Remove deletes an entry from every space. Missing entries are a no-op in
// each underlying store, matching the idempotent-delete property.
func (idx *MultiSpaceIndex) Remove(id string) {
	for _, slot := range idx.lockOrder {
		idx.mu[slot].Lock()
		idx.removeSlotLocked(id, slot)
		idx.mu[slot].Unlock()
	}
	idx.matryoshkaMu.Lock()
	_ = idx.matryoshka.Delete(context.Background(), []string{id})
	idx.matryoshkaMu.Unlock()
}

// Search returns the approximate top-k for a single dense slot.
func (idx *MultiSpaceIndex) Search(slot fingerprint.Slot, query []float32, k int) ([]ScoredID, error) {
	spec := fingerprint.SlotSpecs[slot]
	if spec.Rep != fingerprint.RepDense {
		return nil, fmt.Errorf("slot %s is not a dense space", spec.Name)
	}
	idx.mu[slot].RLock()
	defer idx.mu[slot].RUnlock()

	results, err := idx.dense[slot].Search(context.Background(), query, k)
	if err != nil {
		return nil, fmt.Errorf("search slot %s: %w", spec.Name, err)
	}
	out := make([]ScoredID, len(results))
	for i, r := range results {
		out[i] = ScoredID{ID: r.ID, Similarity: float64(r.Score)}
	}
	return out, nil
}

// SearchSparse walks the posting lists for a sparse slot's query.
func (idx *MultiSpaceIndex) SearchSparse(slot fingerprint.Slot, query fingerprint.SparseVector, k int) ([]ScoredID, error) {
	spec := fingerprint.SlotSpecs[slot]
	if spec.Rep != fingerprint.RepSparse {
		return nil, fmt.Errorf("slot %s is not a sparse space", spec.Name)
	}
	idx.mu[slot].RLock()
	defer idx.mu[slot].RUnlock()

	raw := idx.sparse[slot].Search(query, k)
	out := make([]ScoredID, len(raw))
	for i, r := range raw {
		out[i] = ScoredID{ID: r.id, Similarity: r.score}
	}
	return out, nil
}

// SearchMatryoshka runs the coarse dense ANN search against the Matryoshka
// prefix graph; prefix128 must already be truncated/padded to MatryoshkaDim.
func (idx *MultiSpaceIndex) SearchMatryoshka(prefix128 []float32, k int) ([]ScoredID, error) {
	idx.matryoshkaMu.RLock()
	defer idx.matryoshkaMu.RUnlock()

	results, err := idx.matryoshka.Search(context.Background(), prefix128, k)
	if err != nil {
		return nil, fmt.Errorf("search matryoshka: %w", err)
	}
	out := make([]ScoredID, len(results))
	for i, r := range results {
		out[i] = ScoredID{ID: r.ID, Similarity: float64(r.Score)}
	}
	return out, nil
}

// SearchLateInteraction runs the coarse ANN search against the
// late-interaction graph's mean-pooled vectors, returning up to k
// candidate ids ranked by pooled-vector similarity. Stage 5 uses this to
// narrow which survivors get the expensive per-token MaxSim rerank
// instead of running it against every stage-4 candidate.
func (idx *MultiSpaceIndex) SearchLateInteraction(pooledQuery []float32, k int) ([]ScoredID, error) {
	idx.lateInteractMu.RLock()
	defer idx.lateInteractMu.RUnlock()

	results, err := idx.lateInteraction.Search(context.Background(), pooledQuery, k)
	if err != nil {
		return nil, fmt.Errorf("search late-interaction graph: %w", err)
	}
	out := make([]ScoredID, len(results))
	for i, r := range results {
		out[i] = ScoredID{ID: r.ID, Similarity: float64(r.Score)}
	}
	return out, nil
}

func (idx *MultiSpaceIndex) markFailed(slot fingerprint.Slot) {
	idx.statusMu.Lock()
	defer idx.statusMu.Unlock()
	idx.failed[slot] = true
}

// IsFailed reports whether a slot has been marked failed since the last
// rebuild. There is no "degraded" mode: a failed slot must be rebuilt from
// the durable store before it participates in pipeline stages again.
func (idx *MultiSpaceIndex) IsFailed(slot fingerprint.Slot) bool {
	idx.statusMu.RLock()
	defer idx.statusMu.RUnlock()
	return idx.failed[slot]
}

// ClearFailed marks a slot healthy again after a successful rebuild.
func (idx *MultiSpaceIndex) ClearFailed(slot fingerprint.Slot) {
	idx.statusMu.Lock()
	defer idx.statusMu.Unlock()
	delete(idx.failed, slot)
}

// Status returns per-slot element counts and health.
func (idx *MultiSpaceIndex) Status() []SlotStatus {
	out := make([]SlotStatus, 0, fingerprint.NumSlots)
	for _, spec := range fingerprint.SlotSpecs {
		health := HealthHealthy
		if idx.IsFailed(spec.Slot) {
			health = HealthFailed
		}
		var count int
		switch spec.Rep {
		case fingerprint.RepDense:
			count = idx.dense[spec.Slot].Count()
		case fingerprint.RepSparse:
			count = idx.sparse[spec.Slot].Count()
		case fingerprint.RepTokenLevel:
			count = idx.lateInteraction.Count()
		}
		out = append(out, SlotStatus{Slot: spec.Slot, ElementCount: count, Health: health})
	}
	return out
}

// Persist snapshots every slot's index under dir, one file/subdirectory per
// slot plus the two auxiliary graphs, guarded by a snapshot lock and
// preceded by a manifest check: persisting over a snapshot written under a
// different shape (slot count, dimensions, metrics, thresholds) fails
// before any slot file is touched.
func (idx *MultiSpaceIndex) Persist(dir string, manifest store.Manifest) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index snapshot directory: %w", err)
	}

	lock := store.NewSnapshotLock(dir)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire snapshot lock: %w", err)
	}
	defer lock.Unlock()

	if err := store.CheckManifest(dir, manifest); err != nil {
		return err
	}

	for _, spec := range fingerprint.SlotSpecs {
		path := filepath.Join(dir, fmt.Sprintf("slot-%02d-%s", spec.Slot, spec.Name))
		switch spec.Rep {
		case fingerprint.RepDense:
			if err := idx.dense[spec.Slot].Save(path); err != nil {
				return fmt.Errorf("persist slot %s: %w", spec.Name, err)
			}
		case fingerprint.RepSparse:
			if err := idx.sparse[spec.Slot].Save(path); err != nil {
				return fmt.Errorf("persist slot %s: %w", spec.Name, err)
			}
		}
	}
	if err := idx.matryoshka.Save(filepath.Join(dir, "matryoshka")); err != nil {
		return fmt.Errorf("persist matryoshka graph: %w", err)
	}
	if err := idx.lateInteraction.Save(filepath.Join(dir, "late-interaction")); err != nil {
		return fmt.Errorf("persist late-interaction graph: %w", err)
	}
	return store.WriteManifest(dir, manifest)
}

// Load restores every slot's index from a snapshot written by Persist,
// refusing a snapshot whose manifest does not match expected.
func (idx *MultiSpaceIndex) Load(dir string, expected store.Manifest) error {
	lock := store.NewSnapshotLock(dir)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire snapshot lock: %w", err)
	}
	defer lock.Unlock()

	if err := store.CheckManifest(dir, expected); err != nil {
		return err
	}

	for _, spec := range fingerprint.SlotSpecs {
		path := filepath.Join(dir, fmt.Sprintf("slot-%02d-%s", spec.Slot, spec.Name))
		switch spec.Rep {
		case fingerprint.RepDense:
			if _, err := os.Stat(path); err == nil {
				if err := idx.dense[spec.Slot].Load(path); err != nil {
					return fmt.Errorf("load slot %s: %w", spec.Name, err)
				}
			}
		case fingerprint.RepSparse:
			if _, err := os.Stat(path); err == nil {
				if err := idx.sparse[spec.Slot].Load(path); err != nil {
					return fmt.Errorf("load slot %s: %w", spec.Name, err)
				}
			}
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "matryoshka")); err == nil {
		if err := idx.matryoshka.Load(filepath.Join(dir, "matryoshka")); err != nil {
			return fmt.Errorf("load matryoshka graph: %w", err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "late-interaction")); err == nil {
		if err := idx.lateInteraction.Load(filepath.Join(dir, "late-interaction")); err != nil {
			return fmt.Errorf("load late-interaction graph: %w", err)
		}
	}
	return nil
}
