package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type mockHTTP struct {
	body   string
	status int
	err    error
}

func (m *mockHTTP) Do(_ *http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/sample.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func TestFetchNormalizesEntries(t *testing.T) {
	f := New(&mockHTTP{body: loadFixture(t)}, 0, 1)

	entries, err := f.Fetch(context.Background(), "https://tech.example.com/rss")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	first := entries[0]
	if diff := cmp.Diff("tech-1001", first.ID); diff != "" {
		t.Errorf("id mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("Go 1.25 released", first.Title); diff != "" {
		t.Errorf("title mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://tech.example.com/img/go.png", first.ImageHint); diff != "" {
		t.Errorf("image hint mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://tech.example.com/rss", first.FeedURL); diff != "" {
		t.Errorf("feed url mismatch (-want +got):\n%s", diff)
	}

	want := time.Date(2026, 8, 10, 8, 0, 0, 0, time.UTC)
	if first.PublishedAt == nil || !first.PublishedAt.Equal(want) {
		t.Errorf("published at = %v, want %v", first.PublishedAt, want)
	}

	// Third item has no GUID: a derived id is assigned.
	if entries[2].ID == "" {
		t.Error("entry without guid should get a derived id")
	}
}

func TestFetchRejectsBadStatus(t *testing.T) {
	f := New(&mockHTTP{body: "nope", status: http.StatusServiceUnavailable}, 0, 1)
	if _, err := f.Fetch(context.Background(), "https://tech.example.com/rss"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestFetchAllIsolatesPerFeedFailures(t *testing.T) {
	xml := loadFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good":
			fmt.Fprint(w, xml)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	f := New(srv.Client(), 5*time.Second, 2)
	results := f.FetchAll(context.Background(), []string{srv.URL + "/bad", srv.URL + "/good"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Error("failing feed should report an error")
	}
	if results[1].Err != nil {
		t.Errorf("healthy feed should succeed, got %v", results[1].Err)
	}
	if len(results[1].Entries) != 3 {
		t.Errorf("healthy feed should yield 3 entries, got %d", len(results[1].Entries))
	}
}

func TestFetchAllPreservesInputOrder(t *testing.T) {
	xml := loadFixture(t)
	var mu sync.Mutex
	delays := map[string]time.Duration{"/a": 50 * time.Millisecond, "/b": 0}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		d := delays[r.URL.Path]
		mu.Unlock()
		time.Sleep(d)
		fmt.Fprint(w, xml)
	}))
	defer srv.Close()

	f := New(srv.Client(), 5*time.Second, 2)
	results := f.FetchAll(context.Background(), []string{srv.URL + "/a", srv.URL + "/b"})

	want := []string{srv.URL + "/a", srv.URL + "/b"}
	got := []string{results[0].FeedURL, results[1].FeedURL}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result order (-want +got):\n%s", diff)
	}
}

func TestFetchAllBoundsConcurrency(t *testing.T) {
	xml := loadFixture(t)
	var inFlight, peak atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, xml)
	}))
	defer srv.Close()

	f := New(srv.Client(), 5*time.Second, 2)
	urls := make([]string, 6)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/feed-%d", srv.URL, i)
	}
	f.FetchAll(context.Background(), urls)

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency %d exceeds the configured bound 2", got)
	}
}
