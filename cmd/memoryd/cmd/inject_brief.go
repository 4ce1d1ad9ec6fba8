package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/contextmemory/workmem/internal/injection"
)

type injectBriefInput struct {
	QueryText string `json:"query_text"`
	SessionID string `json:"session_id"`
}

type injectBriefOutput struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
}

// newInjectBriefCmd runs the brief injection path (§4.9): top five
// candidates, no divergence alerts, packed against a hard 200-token
// ceiling, flattened to a single content string for a compact prompt
// prefix rather than a structured candidate list.
func newInjectBriefCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inject-brief",
		Short: "Build the brief injection payload for a query",
		RunE: func(c *cobra.Command, args []string) error {
			var in injectBriefInput
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

			result, err := injection.BuildBrief(ctx, rt.retriever(in.QueryText), rt.engine, embedded.Fingerprint, in.SessionID, injection.BriefBudget(), time.Now())
			if err != nil {
				return err
			}

			lines := make([]string, 0, len(result.Selected))
			for _, cand := range result.Selected {
				lines = append(lines, cand.Content)
			}

			return writeJSON(c.OutOrStdout(), injectBriefOutput{
				Content:    strings.Join(lines, "\n"),
				TokensUsed: result.TokensUsed,
			})
		},
	}
}
