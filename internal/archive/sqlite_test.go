package archive

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"newsbot/internal/model"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListRecent(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	base := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	posts := []model.ArchivedPost{
		{
			EntryID:     "tech-1001",
			FeedURL:     "https://tech.example.com/rss",
			Title:       "Go 1.25 released",
			Link:        "https://tech.example.com/go-1-25",
			Rewritten:   true,
			ImageUsed:   model.ImageTemplate,
			PublishedAt: base,
		},
		{
			EntryID:     "tech-1002",
			FeedURL:     "https://tech.example.com/rss",
			Title:       "Kubernetes drops dockershim leftovers",
			Link:        "https://tech.example.com/k8s-cleanup",
			ImageUsed:   model.ImageNone,
			PublishedAt: base.Add(time.Hour),
		},
	}

	for i := range posts {
		if err := s.Record(ctx, &posts[i]); err != nil {
			t.Fatalf("record: %v", err)
		}
		if posts[i].ID == 0 {
			t.Error("record should populate the row id")
		}
	}

	got, err := s.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}

	want := []model.ArchivedPost{posts[1], posts[0]}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(model.ArchivedPost{}, "ID")); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordIgnoresDuplicateEntryID(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	post := model.ArchivedPost{
		EntryID:     "tech-1001",
		FeedURL:     "https://tech.example.com/rss",
		Title:       "Go 1.25 released",
		ImageUsed:   model.ImageNone,
		PublishedAt: time.Now().UTC(),
	}
	if err := s.Record(ctx, &post); err != nil {
		t.Fatalf("first record: %v", err)
	}
	dup := post
	if err := s.Record(ctx, &dup); err != nil {
		t.Fatalf("duplicate record should be ignored, got: %v", err)
	}

	got, err := s.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 archived post, got %d", len(got))
	}
}

func TestListRecentRespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 5; i++ {
		post := model.ArchivedPost{
			EntryID:     string(rune('a' + i)),
			FeedURL:     "https://tech.example.com/rss",
			Title:       "post",
			ImageUsed:   model.ImageNone,
			PublishedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Record(ctx, &post); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := s.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 posts, got %d", len(got))
	}
}
