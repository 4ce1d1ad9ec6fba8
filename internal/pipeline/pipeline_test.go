package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextmemory/workmem/internal/embed"
	"github.com/contextmemory/workmem/internal/fingerprint"
	"github.com/contextmemory/workmem/internal/index"
	"github.com/contextmemory/workmem/internal/similarity"
	"github.com/contextmemory/workmem/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, store.ItemStore, *index.MultiSpaceIndex, *embed.StaticProvider) {
	t.Helper()
	s, err := store.NewSQLiteItemStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	idx, err := index.New()
	require.NoError(t, err)

	provider := embed.NewStaticProvider()
	engine := similarity.New()
	p := New(idx, s, engine, DefaultConfig())
	return p, s, idx, provider
}

func seedItem(t *testing.T, ctx context.Context, s store.ItemStore, idx *index.MultiSpaceIndex, provider *embed.StaticProvider, id, content string, at time.Time) {
	t.Helper()
	out, err := provider.EmbedAll(ctx, content)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, &store.Item{
		ID:          id,
		Content:     content,
		Source:      store.SourceUserPrompt,
		SessionID:   "S",
		CreatedAt:   at,
		Fingerprint: out.Fingerprint,
		WordCount:   len(content),
		Tier:        store.TierHot,
	}))
	require.NoError(t, idx.Add(id, out.Fingerprint))
}

func TestPipelineRetrieveFindsSeededItems(t *testing.T) {
	p, s, idx, provider := newTestPipeline(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	seedItem(t, ctx, s, idx, provider, "a", "database migration rollback plan", base)
	seedItem(t, ctx, s, idx, provider, "b", "unrelated cooking recipe", base.Add(time.Minute))
	seedItem(t, ctx, s, idx, provider, "c", "database migration rollback plan", base.Add(2*time.Minute))

	out, err := provider.EmbedAll(ctx, "database migration rollback plan")
	require.NoError(t, err)

	results, stats, err := p.Retrieve(ctx, "database migration rollback plan", out.Fingerprint)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.GreaterOrEqual(t, stats.Stage1Count, 1)
	assert.LessOrEqual(t, len(results), DefaultConfig().FinalK)
}

func TestPipelineRetrieveDeterministic(t *testing.T) {
	p, s, idx, provider := newTestPipeline(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, c := range []string{"alpha notes", "beta notes", "gamma notes"} {
		seedItem(t, ctx, s, idx, provider, string(rune('a'+i)), c, base.Add(time.Duration(i)*time.Minute))
	}

	out, err := provider.EmbedAll(ctx, "alpha notes")
	require.NoError(t, err)

	first, _, err := p.Retrieve(ctx, "alpha notes", out.Fingerprint)
	require.NoError(t, err)
	second, _, err := p.Retrieve(ctx, "alpha notes", out.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPipelineRetrieveEmptyIndex(t *testing.T) {
	p, _, _, provider := newTestPipeline(t)
	ctx := context.Background()
	out, err := provider.EmbedAll(ctx, "anything")
	require.NoError(t, err)

	results, stats, err := p.Retrieve(ctx, "anything", out.Fingerprint)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, stats.Stage1Count)
}

func TestPipelineNoSkippedSlotsWithoutFailure(t *testing.T) {
	p, s, idx, provider := newTestPipeline(t)
	ctx := context.Background()
	seedItem(t, ctx, s, idx, provider, "a", "some content here", time.Now())

	idx.ClearFailed(fingerprint.SlotSemantic) // no-op baseline; no failure is induced
	// Simulate a degraded slot the way the index substrate reports one:
	// markFailed is unexported, so drive it indirectly isn't possible here.
	// Instead just verify the zero-failure path reports no skipped slots.
	out, err := provider.EmbedAll(ctx, "some content here")
	require.NoError(t, err)
	_, stats, err := p.Retrieve(ctx, "some content here", out.Fingerprint)
	require.NoError(t, err)
	assert.Empty(t, stats.SkippedSlots)
}

func TestPipelineGoalAlignmentDefaultsToZeroWithNoGoals(t *testing.T) {
	p, s, idx, provider := newTestPipeline(t)
	ctx := context.Background()
	seedItem(t, ctx, s, idx, provider, "a", "project roadmap discussion", time.Now())

	out, err := provider.EmbedAll(ctx, "project roadmap discussion")
	require.NoError(t, err)
	results, _, err := p.Retrieve(ctx, "project roadmap discussion", out.Fingerprint)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, 0.0, r.GoalAlignment)
	}
}
