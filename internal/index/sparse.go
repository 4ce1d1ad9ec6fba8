package index

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/contextmemory/workmem/internal/fingerprint"
)

// SparsePostingIndex is an inverted/posting-list index over one of the two
// learned-sparse fingerprint spaces (slots 5 and 12). Each dimension of the
// sparse vocabulary gets a roaring bitmap of item keys that have a non-zero
// activation there; scoring a query walks only the posting lists for the
// query's own non-zero dimensions and accumulates a dot product, the same
// access pattern a SPLADE-style retriever uses.
type SparsePostingIndex struct {
	mu sync.RWMutex

	postings map[uint16]*roaring.Bitmap   // dimension -> item keys with non-zero value there
	values   map[uint32]map[uint16]float32 // item key -> {dimension: value}
	idMap    map[string]uint32
	keyMap   map[uint32]string
	nextKey  uint32
}

// NewSparsePostingIndex creates an empty posting-list index.
func NewSparsePostingIndex() *SparsePostingIndex {
	return &SparsePostingIndex{
		postings: make(map[uint16]*roaring.Bitmap),
		values:   make(map[uint32]map[uint16]float32),
		idMap:    make(map[string]uint32),
		keyMap:   make(map[uint32]string),
	}
}

// Add inserts (or replaces) one item's sparse vector.
func (idx *SparsePostingIndex) Add(id string, v fingerprint.SparseVector) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.idMap[id]; ok {
		idx.removeLocked(existing)
		delete(idx.idMap, id)
	}

	key := idx.nextKey
	idx.nextKey++

	entry := make(map[uint16]float32, len(v.Indices))
	for i, dim := range v.Indices {
		entry[dim] = v.Values[i]
		bm, ok := idx.postings[dim]
		if !ok {
			bm = roaring.New()
			idx.postings[dim] = bm
		}
		bm.Add(key)
	}

	idx.values[key] = entry
	idx.idMap[id] = key
	idx.keyMap[key] = id
	return nil
}

// removeLocked drops a key from every posting list it appears in. Caller
// must hold the write lock.
func (idx *SparsePostingIndex) removeLocked(key uint32) {
	for dim := range idx.values[key] {
		if bm, ok := idx.postings[dim]; ok {
			bm.Remove(key)
		}
	}
	delete(idx.values, key)
	delete(idx.keyMap, key)
}

// Remove deletes an item from the index. Absent ids are a no-op.
func (idx *SparsePostingIndex) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key, ok := idx.idMap[id]
	if !ok {
		return
	}
	idx.removeLocked(key)
	delete(idx.idMap, id)
}

type sparseScore struct {
	id    string
	score float64
}

// Search returns the top-k items by dot product against the query's
// non-zero dimensions only, walking each dimension's posting list once.
func (idx *SparsePostingIndex) Search(query fingerprint.SparseVector, k int) []sparseScore {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	accum := make(map[uint32]float64)
	for i, dim := range query.Indices {
		bm, ok := idx.postings[dim]
		if !ok {
			continue
		}
		qv := float64(query.Values[i])
		it := bm.Iterator()
		for it.HasNext() {
			key := it.Next()
			accum[key] += qv * float64(idx.values[key][dim])
		}
	}

	scores := make([]sparseScore, 0, len(accum))
	for key, s := range accum {
		scores = append(scores, sparseScore{id: idx.keyMap[key], score: s})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].id < scores[j].id
	})
	if len(scores) > k {
		scores = scores[:k]
	}
	return scores
}

// Count returns the number of items currently indexed.
func (idx *SparsePostingIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.idMap)
}

type sparsePostingSnapshot struct {
	Postings map[uint16][]uint32
	Values   map[uint32]map[uint16]float32
	IDMap    map[string]uint32
	NextKey  uint32
}

// Save persists the index to path as a gob-encoded snapshot.
func (idx *SparsePostingIndex) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snap := sparsePostingSnapshot{
		Postings: make(map[uint16][]uint32, len(idx.postings)),
		Values:   idx.values,
		IDMap:    idx.idMap,
		NextKey:  idx.nextKey,
	}
	for dim, bm := range idx.postings {
		snap.Postings[dim] = bm.ToArray()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create sparse index directory: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encode sparse index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write sparse index: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores the index from a snapshot written by Save.
func (idx *SparsePostingIndex) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sparse index: %w", err)
	}

	var snap sparsePostingSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("decode sparse index: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.postings = make(map[uint16]*roaring.Bitmap, len(snap.Postings))
	for dim, keys := range snap.Postings {
		bm := roaring.New()
		bm.AddMany(keys)
		idx.postings[dim] = bm
	}
	idx.values = snap.Values
	idx.idMap = snap.IDMap
	idx.nextKey = snap.NextKey
	idx.keyMap = make(map[uint32]string, len(snap.IDMap))
	for id, key := range snap.IDMap {
		idx.keyMap[key] = id
	}
	return nil
}
