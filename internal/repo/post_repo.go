// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Post model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-powboard/internal/domain"
)

// InsertPostIfAbsent stores p unless a post for the same transaction exists.
func InsertPostIfAbsent(ctx context.Context, db *gorm.DB, p *domain.Post) (bool, error) {
	return insertIfAbsent(ctx, db, p)
}

// GetPostByTxID fetches the post carried by txID, or ErrNotFound.
func GetPostByTxID(ctx context.Context, db *gorm.DB, txID string) (*domain.Post, error) {
	var p domain.Post
	if err := db.WithContext(ctx).Where("tx_id = ?", txID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePostCreatedAt sets created_at for the post carried by txID. It returns
// ErrNotFound when no such post exists.
func UpdatePostCreatedAt(ctx context.Context, db *gorm.DB, txID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("tx_id = ?", txID).
		Update("created_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementReplyCount bumps the denormalized reply counter of the post carried
// by txID. A missing parent is not an error: replies may arrive first.
func IncrementReplyCount(ctx context.Context, db *gorm.DB, txID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("tx_id = ?", txID).
		UpdateColumn("reply_count", gorm.Expr("reply_count + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountReplies returns how many stored posts reply to txID.
func CountReplies(ctx context.Context, db *gorm.DB, txID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Post{}).Where("reply_tx_id = ?", txID).Count(&n).Error
	return n, err
}

// ListRecentPosts returns up to limit posts, newest insertion first, skipping
// the transactions listed in exclude.
func ListRecentPosts(ctx context.Context, db *gorm.DB, exclude []string, limit int) ([]domain.Post, error) {
	var out []domain.Post
	q := db.WithContext(ctx).Model(&domain.Post{})
	// NOT IN over an empty list matches nothing in SQL.
	if len(exclude) > 0 {
		q = q.Where("tx_id NOT IN ?", exclude)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("id DESC").Find(&out).Error
	return out, err
}

// ListReplies returns every post replying to txID ordered deterministically
// (id ASC).
func ListReplies(ctx context.Context, db *gorm.DB, txID string) ([]domain.Post, error) {
	var out []domain.Post
	err := db.WithContext(ctx).
		Where("reply_tx_id = ?", txID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
