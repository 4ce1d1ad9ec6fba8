package divergence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/similarity"
)

func unitVec(dim int, axis int) fingerprint.DenseVector {
	v := make(fingerprint.DenseVector, dim)
	v[axis%dim] = 1
	return v
}

func TestDivergenceOnlyOnSemantic(t *testing.T) {
	// Given a query whose temporal slots differ wildly from a stored
	// item's but whose semantic-category slots all match (a zero or empty
	// slot scores 0 and would itself be below its low threshold)
	item := fingerprint.Zeroed()
	query := fingerprint.Zeroed()
	for _, slot := range fingerprint.SemanticSlots() {
		spec := fingerprint.SlotSpecs[slot]
		var data fingerprint.SlotData
		switch spec.Rep {
		case fingerprint.RepDense:
			data = unitVec(spec.Dimension, 0)
		case fingerprint.RepSparse:
			data = fingerprint.SparseVector{Indices: []uint16{1}, Values: []float32{1}}
		case fingerprint.RepTokenLevel:
			data = fingerprint.TokenMatrix{[]float32(unitVec(spec.Dimension, 0))}
		}
		item.Slots[slot] = data // identical -> high sim
		query.Slots[slot] = data
	}
	item.Slots[fingerprint.SlotTemporalRecent] = unitVec(512, 0)
	query.Slots[fingerprint.SlotTemporalRecent] = unitVec(512, 1) // orthogonal -> low sim

	det := New(similarity.New())
	report := det.Check(query, []RecentItem{{ID: "item-1", Fingerprint: item, CreatedAt: time.Now()}})

	// Then no alert is raised: the only low-similarity slot is temporal,
	// which the detector never inspects.
	assert.Empty(t, report.Alerts)
}

func TestDivergenceFlagsSemanticDrift(t *testing.T) {
	item := fingerprint.Zeroed()
	item.Slots[fingerprint.SlotSemantic] = unitVec(1024, 0)

	query := fingerprint.Zeroed()
	query.Slots[fingerprint.SlotSemantic] = unitVec(1024, 5) // orthogonal -> low sim

	det := New(similarity.New())
	report := det.Check(query, []RecentItem{{ID: "item-1", Fingerprint: item, CreatedAt: time.Now(), Summary: "prior topic"}})

	require.NotEmpty(t, report.Alerts)
	assert.Equal(t, fingerprint.SlotSemantic, report.Alerts[0].Slot)
	assert.True(t, ShouldAlert(report))
}

func TestDivergenceAlertSlotIsAlwaysSemantic(t *testing.T) {
	item := fingerprint.Zeroed()
	query := fingerprint.Zeroed()
	// leave everything at zero/orthogonal defaults; cosine(0,0)=0 triggers
	// every slot's low threshold, including temporal ones structurally
	// excluded from iteration.
	det := New(similarity.New())
	report := det.Check(query, []RecentItem{{ID: "x", Fingerprint: item, CreatedAt: time.Now()}})
	for _, a := range report.Alerts {
		assert.Equal(t, fingerprint.CategorySemantic, fingerprint.SlotSpecs[a.Slot].Category)
	}
}

func TestMaxRecentCap(t *testing.T) {
	det := New(similarity.New(), WithMaxRecent(1))
	items := []RecentItem{
		{ID: "a", Fingerprint: fingerprint.Zeroed(), CreatedAt: time.Now()},
		{ID: "b", Fingerprint: fingerprint.Zeroed(), CreatedAt: time.Now()},
	}
	report := det.Check(fingerprint.Zeroed(), items)
	for _, a := range report.Alerts {
		assert.Equal(t, "a", a.ItemID)
	}
}
