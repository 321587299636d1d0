// Package dedup decides whether a feed entry has already been published.
package dedup

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"newsbot/internal/model"
)

// EntryID returns the stable identifier for a feed item. Items without a
// GUID get a SHA-256 hash of link+title; two items that hash identically
// are treated as one (an acceptable false-negative of "new").
func EntryID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return DerivedID(item.Link, item.Title)
}

// DerivedID builds the hash-based identifier used when a feed provides
// no GUID.
func DerivedID(link, title string) string {
	h := sha256.Sum256([]byte(link + "|" + title))
	return fmt.Sprintf("sha256:%x", h[:16])
}

// IsNew reports whether no seen record exists for the entry.
func IsNew(st *model.BotState, entry model.FeedEntry) bool {
	_, seen := st.SeenRecords[entry.ID]
	return !seen
}

// MarkSeen records the entry as published at the given time. It mutates
// the state only; the caller decides when to flush.
func MarkSeen(st *model.BotState, entry model.FeedEntry, publishedAt time.Time) {
	st.SeenRecords[entry.ID] = model.SeenRecord{
		ID:          entry.ID,
		PublishedAt: publishedAt.UTC(),
	}
}
