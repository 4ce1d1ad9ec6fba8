package cmd

import (
	"context"

	"github.com/contextmemory/workmem/internal/divergence"
	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/injection"
	"github.com/contextmemory/workmem/internal/memory"
	"github.com/contextmemory/workmem/internal/pipeline"
)

// pipelineRetriever adapts the corpus-wide retrieval pipeline to the
// injection package's session-scoped Retriever contract: Retrieve runs
// the pipeline once against queryText and filters its corpus-wide
// ranking down to sessionID, truncated to limit. Divergence stays on
// the façade's minimal per-session scan, its only role on this path.
type pipelineRetriever struct {
	pipeline  *pipeline.Pipeline
	facade    *memory.Facade
	queryText string
}

var _ injection.Retriever = (*pipelineRetriever)(nil)

func (r *pipelineRetriever) Retrieve(ctx context.Context, queryFP fingerprint.Fingerprint, sessionID string, limit int) ([]injection.RetrievedItem, error) {
	results, _, err := r.pipeline.Retrieve(ctx, r.queryText, queryFP)
	if err != nil {
		return nil, err
	}

	out := make([]injection.RetrievedItem, 0, limit)
	for _, res := range results {
		if res.SessionID != sessionID {
			continue
		}
		out = append(out, injection.RetrievedItem{
			ItemID:    res.ItemID,
			Content:   res.Content,
			CreatedAt: res.CreatedAt,
			Scores:    res.Scores,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *pipelineRetriever) CheckDivergence(ctx context.Context, queryFP fingerprint.Fingerprint, sessionID string) (divergence.Report, error) {
	return r.facade.CheckDivergence(ctx, queryFP, sessionID)
}

// retriever builds a pipelineRetriever bound to queryText, the one
// piece of per-call state the pipeline's corpus-wide Retrieve needs
// that openRuntime can't supply ahead of time.
func (rt *runtime) retriever(queryText string) injection.Retriever {
	return &pipelineRetriever{pipeline: rt.pipeline, facade: rt.facade, queryText: queryText}
}
