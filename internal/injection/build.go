package injection

import (
	"context"
	"time"

	"github.com/contextmemory/workmem/internal/divergence"
	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/similarity"
)

// FullLimit and BriefLimit are the retrieval limits for the two paths.
const (
	FullLimit  = 20
	BriefLimit = 5
)

// Retriever is the minimal contract the injection pipeline needs out of
// the session façade or retrieval pipeline: session-scoped similarity
// hits against a query fingerprint and, for the full path, a divergence
// check against that same query.
type Retriever interface {
	Retrieve(ctx context.Context, queryFP fingerprint.Fingerprint, sessionID string, limit int) ([]RetrievedItem, error)
	CheckDivergence(ctx context.Context, queryFP fingerprint.Fingerprint, sessionID string) (divergence.Report, error)
}

// BuildFull runs the full path: retrieval at FullLimit, a divergence
// check, candidate construction (retrieval hits plus alerts), bucket
// filtering, priority ranking, and a budget-pack against budget (default
// DefaultBudget()). Empty inputs at any step yield an empty Result, never
// an error.
func BuildFull(ctx context.Context, r Retriever, engine *similarity.Engine, queryFP fingerprint.Fingerprint, sessionID string, budget TokenBudget, now time.Time) (Result, error) {
	items, err := r.Retrieve(ctx, queryFP, sessionID, FullLimit)
	if err != nil {
		return Result{}, err
	}
	report, err := r.CheckDivergence(ctx, queryFP, sessionID)
	if err != nil {
		return Result{}, err
	}

	candidates := make([]InjectionCandidate, 0, len(items)+len(report.Alerts))
	for _, item := range items {
		candidates = append(candidates, BuildFromRetrieval(item, engine, now))
	}
	for _, alert := range report.Alerts {
		candidates = append(candidates, BuildFromAlert(alert, now))
	}

	return Pack(Filter(candidates), budget), nil
}

// BuildBrief runs the brief path: retrieval at BriefLimit, no divergence
// check, no bucket filtering beyond the hard budget ceiling (default
// BriefBudget()).
func BuildBrief(ctx context.Context, r Retriever, engine *similarity.Engine, queryFP fingerprint.Fingerprint, sessionID string, budget TokenBudget, now time.Time) (Result, error) {
	items, err := r.Retrieve(ctx, queryFP, sessionID, BriefLimit)
	if err != nil {
		return Result{}, err
	}

	candidates := make([]InjectionCandidate, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, BuildFromRetrieval(item, engine, now))
	}

	return Pack(candidates, budget), nil
}
