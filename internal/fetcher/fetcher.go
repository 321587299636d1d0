// Package fetcher downloads source feeds and normalizes their items
// into domain entries.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"newsbot/internal/dedup"
	"newsbot/internal/model"
)

// maxFeedBytes caps how much of a feed body is read.
const maxFeedBytes = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result holds the outcome of fetching one feed. Err is set when the
// fetch or parse failed; the entries of other feeds are unaffected.
type Result struct {
	FeedURL string
	Entries []model.FeedEntry
	Err     error
}

// Fetcher downloads and parses feeds with bounded concurrency.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
	workers int
}

// New creates a Fetcher with the given HTTP client, per-request timeout
// and concurrency bound.
func New(client HTTPClient, timeout time.Duration, workers int) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if workers <= 0 {
		workers = 1
	}
	return &Fetcher{client: client, timeout: timeout, workers: workers}
}

// Fetch downloads and parses a single feed, returning its entries in
// document order.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]model.FeedEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsChannelBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]model.FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, normalize(item, url))
	}
	return entries, nil
}

// FetchAll fetches every feed concurrently, at most `workers` in flight.
// Results are slotted by input index so the configured feed order is
// preserved regardless of completion order. Per-feed failures land in
// the result slot and never abort the other fetches.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for i, url := range urls {
		g.Go(func() error {
			entries, err := f.Fetch(ctx, url)
			results[i] = Result{FeedURL: url, Entries: entries, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// normalize maps a gofeed item to a domain entry, deriving a stable id
// and the best available image hint.
func normalize(item *gofeed.Item, feedURL string) model.FeedEntry {
	entry := model.FeedEntry{
		ID:        dedup.EntryID(item),
		Title:     item.Title,
		Summary:   item.Description,
		Link:      item.Link,
		ImageHint: imageHint(item),
		FeedURL:   feedURL,
	}
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		entry.PublishedAt = &t
	} else if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		entry.PublishedAt = &t
	}
	return entry
}

// imageHint extracts an image URL from the item, checking the explicit
// feed image first and falling back to image enclosures.
func imageHint(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if len(enc.Type) >= 6 && enc.Type[:6] == "image/" {
			return enc.URL
		}
	}
	return ""
}
