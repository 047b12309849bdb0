// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) in the HTTP layer and for the
// status endpoint.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-powboard/internal/domain"
)

// TableStats summarizes one table: its row count and highest primary key.
// Rows are append-only, so the pair changes whenever anything is written.
type TableStats struct {
	Count int64 `json:"count"`
	MaxID uint  `json:"max_id"`
}

// FeedStats holds the TableStats of every table that influences a feed.
type FeedStats struct {
	Events TableStats `json:"events"`
	Posts  TableStats `json:"posts"`
	Proofs TableStats `json:"proofs"`
}

func tableStats(ctx context.Context, db *gorm.DB, model any) (TableStats, error) {
	var st TableStats
	if err := db.WithContext(ctx).Model(model).Count(&st.Count).Error; err != nil {
		return TableStats{}, err
	}
	if st.Count == 0 {
		return st, nil
	}
	var row struct{ ID uint }
	if err := db.WithContext(ctx).Model(model).Select("id").Order("id DESC").Limit(1).Scan(&row).Error; err != nil {
		return TableStats{}, err
	}
	st.MaxID = row.ID
	return st, nil
}

// Stats returns aggregate metadata for the events, posts and proofs tables.
// Post updates (created_at backfill, reply counters) do not move these
// numbers; callers needing exact freshness must not rely on them alone.
func Stats(ctx context.Context, db *gorm.DB) (FeedStats, error) {
	var (
		fs  FeedStats
		err error
	)
	if fs.Events, err = tableStats(ctx, db, &domain.Event{}); err != nil {
		return FeedStats{}, err
	}
	if fs.Posts, err = tableStats(ctx, db, &domain.Post{}); err != nil {
		return FeedStats{}, err
	}
	if fs.Proofs, err = tableStats(ctx, db, &domain.Proof{}); err != nil {
		return FeedStats{}, err
	}
	return fs, nil
}
