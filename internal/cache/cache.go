// Package cache holds read-through caches for stored posts. Only the raw post
// row is cached: difficulty depends on the query window and is always
// recomputed. Every implementation is safe for concurrent use and treats
// backend failures as misses.
package cache

import (
	"context"

	"github.com/tbourn/go-powboard/internal/domain"
)

// PostCache caches posts by transaction id.
type PostCache interface {
	Get(ctx context.Context, txID string) (*domain.Post, bool)
	Set(ctx context.Context, p *domain.Post)
	Invalidate(ctx context.Context, txIDs ...string)
}

// Nop is a PostCache that stores nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) (*domain.Post, bool) { return nil, false }
func (Nop) Set(context.Context, *domain.Post)               {}
func (Nop) Invalidate(context.Context, ...string)           {}

// clone returns a copy of p with Difficulty cleared so cached values never
// leak a window-dependent score.
func clone(p *domain.Post) *domain.Post {
	cp := *p
	cp.Difficulty = 0
	if p.CreatedAt != nil {
		t := *p.CreatedAt
		cp.CreatedAt = &t
	}
	if p.ReplyTxID != nil {
		r := *p.ReplyTxID
		cp.ReplyTxID = &r
	}
	if p.Author != nil {
		a := *p.Author
		cp.Author = &a
	}
	return &cp
}
