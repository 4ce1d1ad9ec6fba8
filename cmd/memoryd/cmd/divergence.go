package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

type divergenceInput struct {
	QueryText string `json:"query_text"`
	SessionID string `json:"session_id"`
}

type divergenceAlertOutput struct {
	ItemID     string  `json:"item_id"`
	Slot       string  `json:"slot"`
	Similarity float64 `json:"similarity"`
	Summary    string  `json:"summary"`
}

type divergenceOutput struct {
	Alerts []divergenceAlertOutput `json:"alerts"`
}

// newDivergenceCmd runs the divergence detector alone, without bundling
// its alerts into a packed injection payload.
func newDivergenceCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "divergence",
		Short: "Check a query against recent session memory for topic drift",
		RunE: func(c *cobra.Command, args []string) error {
			var in divergenceInput
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

			report, err := rt.facade.CheckDivergence(ctx, embedded.Fingerprint, in.SessionID)
			if err != nil {
				return err
			}

			out := divergenceOutput{Alerts: make([]divergenceAlertOutput, 0, len(report.Alerts))}
			for _, alert := range report.Alerts {
				out.Alerts = append(out.Alerts, divergenceAlertOutput{
					ItemID:     alert.ItemID,
					Slot:       alert.Slot.String(),
					Similarity: alert.Similarity,
					Summary:    alert.Summary,
				})
			}

			return writeJSON(c.OutOrStdout(), out)
		},
	}
}
