package memory

import (
	"context"

	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/injection"
)

// Retrieve adapts RetrieveSimilar to the injection pipeline's Retriever
// contract: it joins each similarity hit back against the store to pull
// the content and creation time the injection candidates need but
// SimilarityResult doesn't carry.
func (f *Facade) Retrieve(ctx context.Context, queryFP fingerprint.Fingerprint, sessionID string, limit int) ([]injection.RetrievedItem, error) {
	hits, err := f.RetrieveSimilar(ctx, queryFP, sessionID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]injection.RetrievedItem, 0, len(hits))
	for _, hit := range hits {
		item, ok, err := f.store.Get(ctx, hit.ItemID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, injection.RetrievedItem{
			ItemID:    hit.ItemID,
			Content:   item.Content,
			CreatedAt: item.CreatedAt,
			Scores:    hit.Scores,
		})
	}
	return out, nil
}

// CheckDivergence already matches the injection.Retriever signature;
// Facade satisfies injection.Retriever directly via this method plus
// Retrieve above.
var _ injection.Retriever = (*Facade)(nil)
