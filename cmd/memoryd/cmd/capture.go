package cmd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/contextmemory/workmem/internal/store"
)

type captureInput struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
	SourceTag string `json:"source_tag"`
}

type captureOutput struct {
	ID string `json:"id"`
}

// newCaptureCmd embeds one piece of content and stores it as a new item,
// the write side of the hook surface's capture/inject pair.
func newCaptureCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Embed and store one piece of content",
		RunE: func(c *cobra.Command, args []string) error {
			var in captureInput
			if err := readJSON(c.InOrStdin(), &in); err != nil {
				return err
			}

			rt, err := openRuntime(*dataDir)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := context.Background()
			embedded, err := rt.provider.EmbedAll(ctx, in.Content)
			if err != nil {
				return err
			}

			item := &store.Item{
				ID:          uuid.New().String(),
				Content:     in.Content,
				Source:      store.SourceTag(in.SourceTag),
				SessionID:   in.SessionID,
				CreatedAt:   time.Now(),
				Fingerprint: embedded.Fingerprint,
				WordCount:   wordCount(in.Content),
				Tier:        store.TierHot,
			}
			if err := rt.itemStore.Put(ctx, item); err != nil {
				return err
			}

			if err := rt.index.Add(item.ID, item.Fingerprint); err != nil {
				_, _ = rt.itemStore.Delete(ctx, item.ID)
				return err
			}

			if err := rt.bm25.Index(ctx, []*store.Document{{ID: item.ID, Content: item.Content}}); err != nil {
				rt.index.Remove(item.ID)
				_, _ = rt.itemStore.Delete(ctx, item.ID)
				return err
			}

			return writeJSON(c.OutOrStdout(), captureOutput{ID: item.ID})
		},
	}
}

func wordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
