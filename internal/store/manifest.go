package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	amanerrors "github.com/contextmemory/workmem/internal/errors"
	"github.com/contextmemory/workmem/internal/fingerprint"
)

// ManifestFileName is the fixed name of the snapshot manifest written
// alongside an index snapshot directory.
const ManifestFileName = "manifest.json"

// Manifest pins the shape a snapshot was written with: slot count, each
// slot's dimension and metric, category weights, and similarity
// thresholds. Loading a snapshot under a different shape (a slot added,
// a threshold retuned) is a configuration error, not silent drift, so a
// mismatch is surfaced rather than loaded partially.
type Manifest struct {
	SlotCount       int                           `json:"slot_count"`
	Dimensions      [fingerprint.NumSlots]int     `json:"dimensions"`
	Metrics         [fingerprint.NumSlots]string  `json:"metrics"`
	CategoryWeights [4]float64                    `json:"category_weights"`
	HighThresholds  [fingerprint.NumSlots]float64  `json:"high_thresholds"`
	LowThresholds   [fingerprint.NumSlots]float64  `json:"low_thresholds"`
}

// BuildManifest derives the slot-count/dimension/metric fields from the
// fixed fingerprint.SlotSpecs table and pins the given tunable fields.
func BuildManifest(categoryWeights [4]float64, high, low [fingerprint.NumSlots]float64) Manifest {
	m := Manifest{
		SlotCount:       fingerprint.NumSlots,
		CategoryWeights: categoryWeights,
		HighThresholds:  high,
		LowThresholds:   low,
	}
	for _, spec := range fingerprint.SlotSpecs {
		m.Dimensions[spec.Slot] = spec.Dimension
		m.Metrics[spec.Slot] = spec.Metric.String()
	}
	return m
}

// Equal reports whether two manifests describe the same snapshot shape.
func (m Manifest) Equal(other Manifest) bool {
	if m.SlotCount != other.SlotCount {
		return false
	}
	if m.Dimensions != other.Dimensions || m.Metrics != other.Metrics {
		return false
	}
	if m.CategoryWeights != other.CategoryWeights {
		return false
	}
	if m.HighThresholds != other.HighThresholds || m.LowThresholds != other.LowThresholds {
		return false
	}
	return true
}

// WriteManifest writes m as dir/manifest.json.
func WriteManifest(dir string, m Manifest) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return amanerrors.Wrap(amanerrors.ErrCodeFileNotFound, fmt.Errorf("create snapshot directory: %w", err))
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return amanerrors.Wrap(amanerrors.ErrCodeInternal, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), data, 0644); err != nil {
		return amanerrors.Wrap(amanerrors.ErrCodeFileNotFound, fmt.Errorf("write manifest: %w", err))
	}
	return nil
}

// LoadManifest reads dir/manifest.json. A missing file is reported as
// (Manifest{}, false, nil) so first-run callers can skip the comparison.
func LoadManifest(dir string) (Manifest, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if os.IsNotExist(err) {
		return Manifest{}, false, nil
	}
	if err != nil {
		return Manifest{}, false, amanerrors.Wrap(amanerrors.ErrCodeFileCorrupt, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, false, amanerrors.New(amanerrors.ErrCodeManifestMismatch, "manifest is not valid JSON", err)
	}
	return m, true, nil
}

// CheckManifest loads dir's manifest, if any, and compares it against
// expected. A mismatch returns ErrCodeManifestMismatch; a first-run
// directory with no manifest yet returns nil so Persist can write one.
func CheckManifest(dir string, expected Manifest) error {
	existing, found, err := LoadManifest(dir)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if !existing.Equal(expected) {
		return amanerrors.New(amanerrors.ErrCodeManifestMismatch,
			"snapshot manifest does not match the running configuration", nil)
	}
	return nil
}

// SnapshotLock guards a snapshot directory against concurrent writers: two
// memoryd processes racing a Persist (or a Persist racing a Load) would
// otherwise interleave partial slot files into the same directory.
type SnapshotLock struct {
	fl *flock.Flock
}

// NewSnapshotLock opens (without acquiring) the lock file for dir.
func NewSnapshotLock(dir string) *SnapshotLock {
	return &SnapshotLock{fl: flock.New(filepath.Join(dir, ".snapshot.lock"))}
}

// Lock blocks until the snapshot lock is acquired.
func (l *SnapshotLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0755); err != nil {
		return amanerrors.Wrap(amanerrors.ErrCodeFileNotFound, err)
	}
	if err := l.fl.Lock(); err != nil {
		return amanerrors.Wrap(amanerrors.ErrCodeFileNotFound, err)
	}
	return nil
}

// Unlock releases the snapshot lock.
func (l *SnapshotLock) Unlock() error {
	return l.fl.Unlock()
}
