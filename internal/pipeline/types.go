package pipeline

import (
	"time"

	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/similarity"
)

// Result is one final ranked candidate out of the pipeline.
type Result struct {
	ItemID         string
	SessionID      string
	Content        string
	CreatedAt      time.Time
	Scores         similarity.PerSpaceScores
	MatchingSpaces []fingerprint.Slot
	Stage3Score    float64
	Stage4Score    float64
	FinalScore     float64
	GoalAlignment  float64
	Misaligned     bool
}

// Stats reports pipeline execution metadata: how many candidates survived
// each stage, which slots were skipped because their index reported
// failed, and whether the end-to-end time budget was exceeded. Exceeding
// budget never aborts in-flight work — it is only reported.
type Stats struct {
	Stage1Count  int
	Stage2Count  int
	Stage3Count  int
	Stage4Count  int
	Stage5Count  int
	SkippedSlots []fingerprint.Slot
	Elapsed      time.Duration
	BudgetExceeded bool
}

// candidate is the pipeline's internal working unit as it narrows stage
// by stage.
type candidate struct {
	id        string
	createdAt time.Time
	raw       float64 // ties broken by descending raw similarity at the stage that produced this candidate
}
