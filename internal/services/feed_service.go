// Package services – FeedService
//
// FeedService answers the read path: the ranked feed for a time window, a
// single post with its accumulated proof-of-work, and a post's replies.
// Difficulty is always recomputed from proofs inside the window; stored post
// rows are served through the post cache.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include the window bounds and transaction ids where applicable.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-powboard/internal/cache"
	"github.com/tbourn/go-powboard/internal/domain"
	"github.com/tbourn/go-powboard/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPageSize caps the unboosted part of a feed.
const DefaultPageSize = 100

// FeedService provides ranked, window-scoped reads.
type FeedService struct {
	DB    *gorm.DB
	Cache cache.PostCache

	// PageSize caps how many unboosted posts are appended to a feed.
	PageSize int
	// Now closes windows without an explicit end.
	Now func() time.Time
}

// NewFeedService constructs a FeedService with default paging.
func NewFeedService(db *gorm.DB, c cache.PostCache, pageSize int) *FeedService {
	if c == nil {
		c = cache.Nop{}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &FeedService{DB: db, Cache: c, PageSize: pageSize, Now: time.Now}
}

// ListPosts returns every boosted post in the window followed by up to
// PageSize of the most recent unboosted posts, ordered by Less.
func (s *FeedService) ListPosts(ctx context.Context, w domain.Window) ([]domain.Post, error) {
	w, err := s.window(w)
	if err != nil {
		return nil, err
	}
	ctx, span := s.start(ctx, "ListPosts", w)
	defer span.End()

	boosted, err := repo.AggregateDifficulty(ctx, s.DB, w, repo.AggregateFilter{})
	if err != nil {
		return nil, err
	}
	exclude := make([]string, len(boosted))
	for i, p := range boosted {
		exclude[i] = p.TxID
	}
	unboosted, err := repo.ListRecentPosts(ctx, s.DB, exclude, s.pageSize())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("feed.boosted", len(boosted)),
		attribute.Int("feed.unboosted", len(unboosted)),
	)
	return Rank(boosted, unboosted), nil
}

// GetPost returns the post carried by txID with its difficulty over w,
// zero when no proof qualifies. ErrPostNotFound when no such post exists.
func (s *FeedService) GetPost(ctx context.Context, txID string, w domain.Window) (*domain.Post, error) {
	w, err := s.window(w)
	if err != nil {
		return nil, err
	}
	ctx, span := s.start(ctx, "GetPost", w, attribute.String("tx.id", txID))
	defer span.End()

	p, err := s.load(ctx, txID)
	if err != nil {
		return nil, err
	}
	d, err := s.work(ctx, txID, w)
	if err != nil {
		return nil, err
	}
	p.Difficulty = d
	return p, nil
}

// GetReplies returns every post replying to txID, zero-filled and ordered by
// Less. The parent need not exist.
func (s *FeedService) GetReplies(ctx context.Context, txID string, w domain.Window) ([]domain.Post, error) {
	w, err := s.window(w)
	if err != nil {
		return nil, err
	}
	ctx, span := s.start(ctx, "GetReplies", w, attribute.String("tx.id", txID))
	defer span.End()

	boosted, err := repo.AggregateDifficulty(ctx, s.DB, w, repo.AggregateFilter{ReplyTo: txID})
	if err != nil {
		return nil, err
	}
	all, err := repo.ListReplies(ctx, s.DB, txID)
	if err != nil {
		return nil, err
	}
	return Rank(boosted, all), nil
}

// Work returns the total difficulty attached to txID within w.
func (s *FeedService) Work(ctx context.Context, txID string, w domain.Window) (float64, error) {
	w, err := s.window(w)
	if err != nil {
		return 0, err
	}
	ctx, span := s.start(ctx, "Work", w, attribute.String("tx.id", txID))
	defer span.End()
	return s.work(ctx, txID, w)
}

// Stats returns table statistics for conditional responses and status.
func (s *FeedService) Stats(ctx context.Context) (repo.FeedStats, error) {
	return repo.Stats(ctx, s.DB)
}

func (s *FeedService) work(ctx context.Context, txID string, w domain.Window) (float64, error) {
	rows, err := repo.AggregateDifficulty(ctx, s.DB, w, repo.AggregateFilter{TxID: txID})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Difficulty, nil
}

// load reads a post row through the cache.
func (s *FeedService) load(ctx context.Context, txID string) (*domain.Post, error) {
	if s.Cache != nil {
		if p, ok := s.Cache.Get(ctx, txID); ok {
			return p, nil
		}
	}
	p, err := repo.GetPostByTxID(ctx, s.DB, txID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, p)
	}
	return p, nil
}

func (s *FeedService) window(w domain.Window) (domain.Window, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	w = w.Normalize(now())
	if !w.Valid() {
		return w, ErrInvalidWindow
	}
	return w, nil
}

func (s *FeedService) pageSize() int {
	if s.PageSize > 0 {
		return s.PageSize
	}
	return DefaultPageSize
}

func (s *FeedService) start(ctx context.Context, name string, w domain.Window, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.Int64("window.start", w.Start.Unix()),
		attribute.Int64("window.end", w.End.Unix()),
	)
	return otel.Tracer("services/FeedService").Start(ctx, name, trace.WithAttributes(attrs...))
}
