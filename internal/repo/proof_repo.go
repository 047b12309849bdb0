// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Proof model
// and the difficulty aggregation that drives feed ranking.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-powboard/internal/domain"
)

// InsertProofIfAbsent stores pr unless a proof with the same
// (tx_id, tx_index) already exists.
func InsertProofIfAbsent(ctx context.Context, db *gorm.DB, pr *domain.Proof) (bool, error) {
	return insertIfAbsent(ctx, db, pr)
}

// ListProofs returns every proof referencing txID, oldest first.
func ListProofs(ctx context.Context, db *gorm.DB, txID string) ([]domain.Proof, error) {
	var out []domain.Proof
	err := db.WithContext(ctx).
		Where("content = ?", txID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// AggregateFilter narrows AggregateDifficulty. Zero values mean no filter.
type AggregateFilter struct {
	TxID    string // only the post carried by this transaction
	ReplyTo string // only replies to this transaction
}

// AggregateDifficulty sums proof difficulty per post over the inclusive
// window w. Each returned Post has Difficulty set to that sum; posts with no
// qualifying proof are absent. Rows come back ordered by difficulty DESC,
// then id DESC.
func AggregateDifficulty(ctx context.Context, db *gorm.DB, w domain.Window, f AggregateFilter) ([]domain.Post, error) {
	var out []domain.Post
	q := db.WithContext(ctx).
		Model(&domain.Post{}).
		Select("posts.*, SUM(proofs.difficulty) AS difficulty").
		Joins("JOIN proofs ON proofs.content = posts.tx_id").
		Where("proofs.timestamp >= ? AND proofs.timestamp <= ?", w.Start.UTC(), w.End.UTC())
	if f.TxID != "" {
		q = q.Where("posts.tx_id = ?", f.TxID)
	}
	if f.ReplyTo != "" {
		q = q.Where("posts.reply_tx_id = ?", f.ReplyTo)
	}
	err := q.Group("posts.id").
		Order("difficulty DESC").
		Order("posts.id DESC").
		Find(&out).Error
	return out, err
}
