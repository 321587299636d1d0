// Package archive keeps an optional durable record of every published
// post for operator inspection. It is advisory: failures here never gate
// the publish pipeline.
package archive

import (
	"context"

	"newsbot/internal/model"
)

// Store is the interface for the publish archive.
type Store interface {
	Record(ctx context.Context, post *model.ArchivedPost) error
	ListRecent(ctx context.Context, limit int) ([]model.ArchivedPost, error)
	Close() error
}

// Nop is the archive used when no database is configured.
type Nop struct{}

// Record discards the post.
func (Nop) Record(context.Context, *model.ArchivedPost) error { return nil }

// ListRecent returns nothing.
func (Nop) ListRecent(context.Context, int) ([]model.ArchivedPost, error) { return nil, nil }

// Close does nothing.
func (Nop) Close() error { return nil }
