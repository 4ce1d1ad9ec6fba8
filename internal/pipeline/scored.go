package pipeline

import (
	"github.com/contextmemory/workmem/internal/similarity"
	"github.com/contextmemory/workmem/internal/store"
)

// scored carries one candidate item plus the scoring state accumulated as
// it passes through stages 3-5. Earlier stages (1-2) work with bare ids
// because they rank against an index, not a query-item comparison; stage
// 3 is the first to need the item's full fingerprint.
type scored struct {
	item          *store.Item
	scores        similarity.PerSpaceScores
	stage3Score   float64
	stage4Score   float64
	finalScore    float64
	goalAlignment float64
	misaligned    bool
}
