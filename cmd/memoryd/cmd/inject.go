package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/injection"
)

type injectInput struct {
	QueryText string `json:"query_text"`
	SessionID string `json:"session_id"`
	Budget    *int   `json:"budget,omitempty"`
}

type injectCandidateOutput struct {
	ItemID            string  `json:"item_id"`
	Content           string  `json:"content"`
	Relevance         float64 `json:"relevance"`
	Priority          float64 `json:"priority"`
	Category          string  `json:"category"`
	IsDivergenceAlert bool    `json:"is_divergence_alert"`
	Bucket            string  `json:"bucket"`
}

type injectOutput struct {
	Candidates         []injectCandidateOutput `json:"candidates"`
	TokensUsed         int                     `json:"tokens_used"`
	CategoriesIncluded []string                `json:"categories_included"`
}

// newInjectCmd runs the full injection path: retrieval plus divergence
// alerts, bucketed, prioritized, and packed against the default
// 1200-token budget (or an explicit override).
func newInjectCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inject",
		Short: "Build the full injection payload for a query",
		RunE: func(c *cobra.Command, args []string) error {
			var in injectInput
			if err := readJSON(c.InOrStdin(), &in); err != nil {
				return err
			}

			rt, err := openRuntime(*dataDir)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := context.Background()
			embedded, err := rt.provider.EmbedAll(ctx, in.QueryText)
			if err != nil {
				return err
			}

			budget := injection.DefaultBudget()
			if in.Budget != nil {
				budget.Total = *in.Budget
			}

			result, err := injection.BuildFull(ctx, rt.retriever(in.QueryText), rt.engine, embedded.Fingerprint, in.SessionID, budget, time.Now())
			if err != nil {
				return err
			}

			return writeJSON(c.OutOrStdout(), toInjectOutput(result))
		},
	}
}

func toInjectOutput(result injection.Result) injectOutput {
	out := injectOutput{
		Candidates: make([]injectCandidateOutput, 0, len(result.Selected)),
		TokensUsed: result.TokensUsed,
	}
	for _, cand := range result.Selected {
		out.Candidates = append(out.Candidates, injectCandidateOutput{
			ItemID:            cand.ItemID,
			Content:           cand.Content,
			Relevance:         cand.Relevance,
			Priority:          cand.Priority,
			Category:          cand.Category.String(),
			IsDivergenceAlert: cand.IsDivergenceAlert,
			Bucket:            string(cand.Bucket),
		})
	}
	for i, tokens := range result.TokensByCategory {
		if tokens > 0 {
			out.CategoriesIncluded = append(out.CategoriesIncluded, fingerprint.Category(i).String())
		}
	}
	return out
}
