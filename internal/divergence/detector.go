// Package divergence implements the divergence detector: a small state
// machine that flags topic drift between a query fingerprint and a
// time-bounded window of recent items, iterating only the
// semantic-category slots. It never keys an alert on a temporal slot —
// enforced structurally by iterating fingerprint.SemanticSlots(), not by
// a runtime check.
package divergence

import (
	"fmt"
	"time"

	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/similarity"
)

// DefaultLookback and DefaultMaxRecent are the detector's default
// configuration.
const (
	DefaultLookback  = 2 * time.Hour
	DefaultMaxRecent = 50
)

// HighSeverityThreshold: an alert whose similarity sits below this value
// is "high" severity.
const HighSeverityThreshold = 0.10

// RecentItem is the detector's input type: the minimal slice of a stored
// item the divergence check needs. Callers (the session façade) convert
// store.Item into this shape.
type RecentItem struct {
	ID          string
	Fingerprint fingerprint.Fingerprint
	Summary     string
	CreatedAt   time.Time
}

// Alert is one DivergenceAlert: the recent item compared against, the one
// slot that flagged, its similarity value, a summary of that item, and a
// timestamp.
type Alert struct {
	ItemID     string
	Slot       fingerprint.Slot
	Similarity float64
	Summary    string
	Timestamp  time.Time
}

// Report is the full output of a divergence check: every alert raised
// across the recent window.
type Report struct {
	Alerts []Alert
}

// Detector consumes a query fingerprint plus a recent-item window and
// flags topic drift using only semantic-category slots.
type Detector struct {
	engine    *similarity.Engine
	lookback  time.Duration
	maxRecent int
	semantic  []fingerprint.Slot
	now       func() time.Time
}

// Option configures a Detector at construction.
type Option func(*Detector)

// WithLookback overrides the default lookback window.
func WithLookback(d time.Duration) Option { return func(det *Detector) { det.lookback = d } }

// WithMaxRecent overrides the default recent-item cap.
func WithMaxRecent(n int) Option { return func(det *Detector) { det.maxRecent = n } }

// withClock overrides the detector's time source; used by tests.
func withClock(now func() time.Time) Option { return func(det *Detector) { det.now = now } }

// New builds a Detector over engine (shared, stateless, safe to reuse).
func New(engine *similarity.Engine, opts ...Option) *Detector {
	det := &Detector{
		engine:    engine,
		lookback:  DefaultLookback,
		maxRecent: DefaultMaxRecent,
		semantic:  fingerprint.SemanticSlots(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(det)
	}
	return det
}

// Lookback and MaxRecent expose the detector's configured window, used by
// the session façade to bound its store query.
func (det *Detector) Lookback() time.Duration { return det.lookback }
func (det *Detector) MaxRecent() int          { return det.maxRecent }

// Check compares queryFP against recent (already filtered to the
// lookback window and capped at MaxRecent by the caller) and returns
// every semantic-slot divergence alert found.
func (det *Detector) Check(queryFP fingerprint.Fingerprint, recent []RecentItem) Report {
	var report Report
	now := det.now()

	limit := len(recent)
	if det.maxRecent > 0 && limit > det.maxRecent {
		limit = det.maxRecent
	}

	for _, item := range recent[:limit] {
		scores := det.engine.ComputeSimilarity(queryFP, item.Fingerprint)
		for _, slot := range det.semantic {
			score := scores[slot]
			if det.engine.IsBelowLowThreshold(slot, score) {
				report.Alerts = append(report.Alerts, Alert{
					ItemID:     item.ID,
					Slot:       slot,
					Similarity: score,
					Summary:    summarize(item.Summary),
					Timestamp:  now,
				})
			}
		}
	}
	return report
}

// ShouldAlert reports whether report contains any high-severity alert
// (similarity below HighSeverityThreshold).
func ShouldAlert(report Report) bool {
	for _, a := range report.Alerts {
		if a.Similarity < HighSeverityThreshold {
			return true
		}
	}
	return false
}

// Summarize is a pure formatter producing a short human-readable summary
// of a report, for logging/injection display.
func Summarize(report Report) string {
	if len(report.Alerts) == 0 {
		return "no divergence detected"
	}
	out := ""
	for i, a := range report.Alerts {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s dropped to %.3f vs %s", a.Slot, a.Similarity, a.ItemID)
	}
	return out
}

func summarize(s string) string {
	const maxLen = 120
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "…"
}
