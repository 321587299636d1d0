package imaging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxImageBytes caps how large a downloaded post image may be. Telegram
// rejects photo uploads above 10 MB anyway.
const maxImageBytes = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// OriginalFetcher downloads the image an entry links to.
type OriginalFetcher struct {
	client  HTTPClient
	timeout time.Duration
}

// NewOriginalFetcher creates an OriginalFetcher with the given HTTP
// client and per-request timeout.
func NewOriginalFetcher(client HTTPClient, timeout time.Duration) *OriginalFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OriginalFetcher{client: client, timeout: timeout}
}

// FetchOriginal downloads the image at url. Non-image responses and
// oversized bodies are errors; the caller decides whether to fall back
// to a template render.
func (f *OriginalFetcher) FetchOriginal(ctx context.Context, url string) ([]byte, error) {
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
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty image body")
	}
	return body, nil
}
