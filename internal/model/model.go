// Package model defines the domain types used across the application.
package model

import "time"

// FeedEntry is one normalized item from a source feed. Entries are
// consumed within a single cycle and never stored long-term.
type FeedEntry struct {
	ID          string
	Title       string
	Summary     string
	Link        string
	PublishedAt *time.Time
	ImageHint   string
	FeedURL     string
}

// SeenRecord marks an entry that has been published to the channel.
type SeenRecord struct {
	ID          string    `json:"id"`
	PublishedAt time.Time `json:"published_at"`
}

// RateWindow holds the publish timestamps inside the trailing hour,
// oldest first. Mutated only by the rate limiter.
type RateWindow struct {
	Timestamps []time.Time `json:"timestamps,omitempty"`
}

// FeedCursor remembers the most recent entry published from a feed.
type FeedCursor struct {
	LastEntryID     string    `json:"last_entry_id"`
	LastPublishedAt time.Time `json:"last_published_at"`
}

// BotState is the full persisted aggregate. Loaded once at startup,
// flushed after every state-changing operation. Unknown fields in the
// on-disk document are ignored on load, so the format stays
// forward-readable.
type BotState struct {
	SeenRecords map[string]SeenRecord `json:"seen_records"`
	RateWindow  RateWindow            `json:"rate_window"`
	FeedCursors map[string]FeedCursor `json:"feed_cursors,omitempty"`
}

// NewBotState returns an empty state with initialized maps.
func NewBotState() *BotState {
	return &BotState{
		SeenRecords: make(map[string]SeenRecord),
		FeedCursors: make(map[string]FeedCursor),
	}
}

// Normalize initializes nil maps after JSON decoding.
func (s *BotState) Normalize() {
	if s.SeenRecords == nil {
		s.SeenRecords = make(map[string]SeenRecord)
	}
	if s.FeedCursors == nil {
		s.FeedCursors = make(map[string]FeedCursor)
	}
}

// EnhancementResult is the per-entry output of the enhancement pipeline.
// Recomputed on every publish attempt, never persisted.
type EnhancementResult struct {
	Text         string
	ImageBytes   []byte
	ImageUsed    ImageUse
	Rewritten    bool
	UsedFallback bool
}

// ImageUse describes how an image was attached to a published post.
type ImageUse string

// Image attachment outcomes.
const (
	ImageNone     ImageUse = "none"
	ImageTemplate ImageUse = "template"
	ImageOriginal ImageUse = "original"
)

// ArchivedPost is one row of the optional publish archive.
type ArchivedPost struct {
	ID          int64
	EntryID     string
	FeedURL     string
	Title       string
	Link        string
	Rewritten   bool
	ImageUsed   ImageUse
	PublishedAt time.Time
}
