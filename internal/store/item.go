package store

import (
	"context"
	"time"

	"github.com/contextmemory/workmem/internal/fingerprint"
)

// SourceTag identifies where an Item's content came from.
type SourceTag string

const (
	SourceHookDescription  SourceTag = "hook-description"
	SourceAssistantResponse SourceTag = "assistant-response"
	SourceChunk             SourceTag = "chunk"
	SourceUserPrompt        SourceTag = "user-prompt"
)

// Tier is an advisory eviction tier. A minimum implementation may ignore it.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// ChunkMeta carries optional provenance for items derived from a larger
// document (e.g. a tool-output chunk), kept opaque to the store.
type ChunkMeta struct {
	ParentID   string
	ChunkIndex int
	ChunkCount int
}

// Item bundles one piece of captured content with its fingerprint and
// bookkeeping fields. Items never mutate after Put; a changed fingerprint
// means a new item.
type Item struct {
	ID          string
	Content     string
	Source      SourceTag
	SessionID   string
	CreatedAt   time.Time
	Fingerprint fingerprint.Fingerprint
	ChunkMeta   *ChunkMeta
	WordCount   int
	Tier        Tier
}

// ItemStore is the durable keyed record store. All operations are
// synchronous: the backing engine does not expose cooperative
// suspension, so callers that need to run under a cooperative scheduler
// must wrap calls in a blocking offload.
//
// Put is required to be atomic: either the item and both secondary indexes
// (session, tier) become visible together, or none of them do.
type ItemStore interface {
	Put(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, bool, error)
	GetBySession(ctx context.Context, sessionID string) ([]*Item, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) (bool, error)

	// GetRecent returns items across all sessions created at or after since,
	// ordered by creation time ascending, capped at limit. The divergence
	// lookback does not use it: the memory facade filters GetBySession.
	GetRecent(ctx context.Context, since time.Time, limit int) ([]*Item, error)

	Close() error
}
