// Package services – ThreadLinker
//
// ThreadLinker projects post and reply events into the posts table and keeps
// thread metadata consistent: the confirmation time of each post is resolved
// from the ledger (best-effort) and corrected when a later delivery learns a
// different value, and parents count their replies even when a reply was
// stored before its parent.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-powboard/internal/domain"
	"github.com/tbourn/go-powboard/internal/repo"
)

// TimeResolver resolves the confirmation time of a transaction. It returns
// nil when the time is unknown and never fails.
type TimeResolver interface {
	ConfirmationTime(ctx context.Context, txID string) *time.Time
}

// LinkResult reports what Link changed.
type LinkResult struct {
	Inserted           bool
	CreatedAtCorrected bool
	ParentLinked       bool
	// Touched lists the transaction ids whose stored post changed.
	Touched []string
}

// ThreadLinker reconciles posts with their thread and confirmation time.
type ThreadLinker struct {
	Resolver TimeResolver
}

// Resolve returns the confirmation time of txID, or nil when unresolved.
func (l *ThreadLinker) Resolve(ctx context.Context, txID string) *time.Time {
	if l == nil || l.Resolver == nil {
		return nil
	}
	at := l.Resolver.ConfirmationTime(ctx, txID)
	if at == nil {
		log.Debug().Str("tx_id", txID).Msg("linker.unresolved")
		return nil
	}
	utc := at.UTC()
	return &utc
}

// Link stores p unless its transaction already has a post, using db (which
// may be a transaction). resolved is the confirmation time obtained from
// Resolve; when an existing post disagrees with it, only created_at is
// rewritten.
func (l *ThreadLinker) Link(ctx context.Context, db *gorm.DB, p *domain.Post, resolved *time.Time) (LinkResult, error) {
	var res LinkResult
	p.CreatedAt = resolved

	// Replies stored before their parent are counted when the parent lands.
	n, err := repo.CountReplies(ctx, db, p.TxID)
	if err != nil {
		return res, err
	}
	p.ReplyCount = int(n)

	inserted, err := repo.InsertPostIfAbsent(ctx, db, p)
	if err != nil {
		return res, err
	}
	if inserted {
		res.Inserted = true
		res.Touched = append(res.Touched, p.TxID)
		if p.ReplyTxID != nil {
			ok, err := repo.IncrementReplyCount(ctx, db, *p.ReplyTxID)
			if err != nil {
				return res, err
			}
			if ok {
				res.ParentLinked = true
				res.Touched = append(res.Touched, *p.ReplyTxID)
			}
		}
		return res, nil
	}

	if resolved == nil {
		return res, nil
	}
	existing, err := repo.GetPostByTxID(ctx, db, p.TxID)
	if err != nil {
		return res, err
	}
	if existing.CreatedAt != nil && existing.CreatedAt.Equal(*resolved) {
		return res, nil
	}
	if err := repo.UpdatePostCreatedAt(ctx, db, p.TxID, *resolved); err != nil {
		return res, err
	}
	log.Info().
		Str("tx_id", p.TxID).
		Time("created_at", *resolved).
		Msg("post.created_at.updated")
	res.CreatedAtCorrected = true
	res.Touched = append(res.Touched, p.TxID)
	return res, nil
}

// Backfill resolves created_at for the post carried by txID when it is still
// unset. Posts that already have a time are left alone and cost no lookup.
// It reports whether the row was updated.
func (l *ThreadLinker) Backfill(ctx context.Context, db *gorm.DB, txID string) (bool, error) {
	p, err := repo.GetPostByTxID(ctx, db, txID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if p.CreatedAt != nil {
		return false, nil
	}
	resolved := l.Resolve(ctx, txID)
	if resolved == nil {
		return false, nil
	}
	if err := repo.UpdatePostCreatedAt(ctx, db, txID, *resolved); err != nil {
		return false, err
	}
	log.Info().
		Str("tx_id", txID).
		Time("created_at", *resolved).
		Msg("post.created_at.backfilled")
	return true, nil
}
