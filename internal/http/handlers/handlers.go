// Package handlers exposes the read API of the board: the ranked feed, a
// single post with its replies and accumulated work, and a liveness status.
//
// Handlers are transport-thin: they parse the time window, call FeedService
// and translate results into HTTP responses, including ETag revalidation.
package handlers

import (
	"context"

	"github.com/tbourn/go-powboard/internal/domain"
	"github.com/tbourn/go-powboard/internal/repo"
)

// FeedService is the read path consumed by the handlers. Implementations
// must be safe for concurrent use and honor ctx.
type FeedService interface {
	// ListPosts returns the ranked feed for w.
	ListPosts(ctx context.Context, w domain.Window) ([]domain.Post, error)
	// GetPost returns one post with its difficulty over w.
	GetPost(ctx context.Context, txID string, w domain.Window) (*domain.Post, error)
	// GetReplies returns the ranked replies to txID over w.
	GetReplies(ctx context.Context, txID string, w domain.Window) ([]domain.Post, error)
	// Stats summarizes stored rows; it changes whenever anything is written.
	Stats(ctx context.Context) (repo.FeedStats, error)
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	feed FeedService
}

// New returns Handlers bound to feed.
func New(feed FeedService) *Handlers {
	return &Handlers{feed: feed}
}
