// Package controller drives the poll loop: fetch, dedup, rate-gate,
// enhance, publish, persist.
package controller

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"newsbot/internal/dedup"
	"newsbot/internal/fetcher"
	"newsbot/internal/model"
	"newsbot/internal/rate"
	"newsbot/internal/state"
)

// Fetcher pulls all configured feeds. Implemented by *fetcher.Fetcher.
type Fetcher interface {
	FetchAll(ctx context.Context, urls []string) []fetcher.Result
}

// Enhancer prepares an entry for publishing. Implemented by
// *enhance.Pipeline.
type Enhancer interface {
	Run(ctx context.Context, entry model.FeedEntry) model.EnhancementResult
}

// Publisher delivers a finished post. Implemented by *publish.Telegram.
type Publisher interface {
	Publish(ctx context.Context, text string, image []byte) error
}

// Archive records published posts. Implemented by archive.Store.
type Archive interface {
	Record(ctx context.Context, post *model.ArchivedPost) error
}

// Observer receives pipeline events. Implemented by *metrics.Collector.
type Observer interface {
	IncPublished()
	IncPublishError()
	IncFetchError()
	IncStateSaveError()
	IncRateDeferred()
	ObserveCycle(d time.Duration)
}

// Controller owns the BotState and runs the repeating cycle. All state
// mutation happens on the Run goroutine; feed fetches are the only
// concurrent work.
type Controller struct {
	feedURLs  []string
	fetch     Fetcher
	enhancer  Enhancer
	publisher Publisher
	store     *state.Store
	limiter   *rate.Limiter
	archive   Archive
	obs       Observer
	log       *slog.Logger

	st       *model.BotState
	interval time.Duration
	now      func() time.Time
}

// New creates a Controller. st is the state loaded at startup; the
// controller takes ownership of it.
func New(
	feedURLs []string,
	fetch Fetcher,
	enhancer Enhancer,
	publisher Publisher,
	store *state.Store,
	limiter *rate.Limiter,
	arch Archive,
	obs Observer,
	st *model.BotState,
	interval time.Duration,
	log *slog.Logger,
) *Controller {
	return &Controller{
		feedURLs:  feedURLs,
		fetch:     fetch,
		enhancer:  enhancer,
		publisher: publisher,
		store:     store,
		limiter:   limiter,
		archive:   arch,
		obs:       obs,
		st:        st,
		interval:  interval,
		log:       log,
		now:       time.Now,
	}
}

// Run executes one cycle immediately, then one per tick, until ctx is
// cancelled. An in-flight persist always completes before return.
func (c *Controller) Run(ctx context.Context) {
	c.runCycle(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("poll loop stopped")
			return
		case <-ticker.C:
			c.runCycle(ctx)
		}
	}
}

// candidate is a dedup-new entry awaiting publish, with the indices
// used for deterministic ordering.
type candidate struct {
	entry     model.FeedEntry
	feedIndex int
	discovery int
}

// runCycle performs one fetch→filter→gate→enhance→publish→persist pass.
func (c *Controller) runCycle(ctx context.Context) {
	start := c.now()

	candidates := c.collectCandidates(ctx)
	published := 0

	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}

		now := c.now()
		if !c.limiter.CanPublishNow(c.st.RateWindow, now) {
			// Stop here rather than skipping ahead: the remaining
			// candidates keep their place and are re-derived from a
			// fresh fetch next cycle.
			c.log.Info("rate limit reached, deferring remaining candidates",
				"deferred", len(candidates)-published,
				"next_eligible", c.limiter.NextEligibleTime(c.st.RateWindow, now))
			c.obs.IncRateDeferred()
			break
		}

		result := c.enhancer.Run(ctx, cand.entry)
		if err := c.publisher.Publish(ctx, result.Text, result.ImageBytes); err != nil {
			// The entry stays unseen and consumes no rate slot; it is
			// retried next cycle. Stop the pass so a down publish
			// target is not hammered.
			c.log.Error("publish failed, will retry next cycle",
				"entry_id", cand.entry.ID, "error", err)
			c.obs.IncPublishError()
			break
		}

		c.markPublished(ctx, cand.entry, result, c.now())
		published++
	}

	c.obs.ObserveCycle(c.now().Sub(start))
	if published > 0 {
		c.log.Info("cycle complete", "published", published, "candidates", len(candidates))
	}
}

// collectCandidates fetches all feeds and returns the dedup-new entries
// in publish order: publishedAt ascending, undated entries last, ties
// broken by feed configuration order then discovery order.
func (c *Controller) collectCandidates(ctx context.Context) []candidate {
	results := c.fetch.FetchAll(ctx, c.feedURLs)

	var candidates []candidate
	inCycle := make(map[string]struct{})

	for feedIndex, res := range results {
		if res.Err != nil {
			c.log.Error("fetch feed", "url", res.FeedURL, "error", res.Err)
			c.obs.IncFetchError()
			continue
		}
		for discovery, entry := range res.Entries {
			if !dedup.IsNew(c.st, entry) {
				continue
			}
			if _, dup := inCycle[entry.ID]; dup {
				c.log.Warn("duplicate entry id within cycle", "entry_id", entry.ID)
				continue
			}
			inCycle[entry.ID] = struct{}{}
			candidates = append(candidates, candidate{
				entry:     entry,
				feedIndex: feedIndex,
				discovery: discovery,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidateLess(candidates[i], candidates[j])
	})
	return candidates
}

// candidateLess orders candidates oldest-first. Entries without a
// publish time sort after all dated entries so a dateless feed cannot
// starve the others.
func candidateLess(a, b candidate) bool {
	switch {
	case a.entry.PublishedAt != nil && b.entry.PublishedAt != nil:
		if !a.entry.PublishedAt.Equal(*b.entry.PublishedAt) {
			return a.entry.PublishedAt.Before(*b.entry.PublishedAt)
		}
	case a.entry.PublishedAt != nil:
		return true
	case b.entry.PublishedAt != nil:
		return false
	}
	if a.feedIndex != b.feedIndex {
		return a.feedIndex < b.feedIndex
	}
	return a.discovery < b.discovery
}

// markPublished commits a successful publish: mark seen, count the rate
// slot, advance the feed cursor, flush state, then archive. A failed
// flush is the acceptable durability boundary: it is logged loudly and
// counted, and the publish stands.
func (c *Controller) markPublished(ctx context.Context, entry model.FeedEntry, result model.EnhancementResult, now time.Time) {
	dedup.MarkSeen(c.st, entry, now)
	c.limiter.Record(&c.st.RateWindow, now)
	c.st.FeedCursors[entry.FeedURL] = model.FeedCursor{
		LastEntryID:     entry.ID,
		LastPublishedAt: now.UTC(),
	}

	if err := c.store.Save(c.st); err != nil {
		c.log.Error("persist state failed, progress since last flush is at risk",
			"entry_id", entry.ID, "error", err)
		c.obs.IncStateSaveError()
	}

	post := &model.ArchivedPost{
		EntryID:     entry.ID,
		FeedURL:     entry.FeedURL,
		Title:       entry.Title,
		Link:        entry.Link,
		Rewritten:   result.Rewritten,
		ImageUsed:   result.ImageUsed,
		PublishedAt: now,
	}
	if err := c.archive.Record(ctx, post); err != nil {
		c.log.Error("archive post", "entry_id", entry.ID, "error", err)
	}

	c.obs.IncPublished()
	c.log.Info("published entry",
		"entry_id", entry.ID, "feed", entry.FeedURL, "title", entry.Title)
}
