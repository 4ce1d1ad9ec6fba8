package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type sessionEndInput struct {
	SessionID  string `json:"session_id"`
	DurationMs int64  `json:"duration_ms"`
}

type sessionEndOutput struct {
	Summary string `json:"summary"`
}

// newSessionEndCmd closes out a session (§6.2): no new capture, just a
// short summary of what the session accumulated for the hook surface to
// surface to the user.
func newSessionEndCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "session-end",
		Short: "Summarize a session's captured memory on close",
		RunE: func(c *cobra.Command, args []string) error {
			var in sessionEndInput
			if err := readJSON(c.InOrStdin(), &in); err != nil {
				return err
			}

			rt, err := openRuntime(*dataDir)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := context.Background()
			count, err := rt.facade.SessionMemoryCount(ctx, in.SessionID)
			if err != nil {
				return err
			}

			summary := fmt.Sprintf("session %s captured %d item(s) over %dms", in.SessionID, count, in.DurationMs)
			return writeJSON(c.OutOrStdout(), sessionEndOutput{Summary: summary})
		},
	}
}
