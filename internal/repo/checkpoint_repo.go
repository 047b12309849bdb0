// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists stream source checkpoints.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-powboard/internal/domain"
)

// GetCheckpoint returns the last block height recorded for stream, or
// ErrNotFound when the stream has never been checkpointed.
func GetCheckpoint(ctx context.Context, db *gorm.DB, stream string) (int64, error) {
	var cp domain.Checkpoint
	if err := db.WithContext(ctx).Where("stream = ?", stream).First(&cp).Error; err != nil {
		return 0, err
	}
	return cp.BlockHeight, nil
}

// SaveCheckpoint upserts the block height for stream.
func SaveCheckpoint(ctx context.Context, db *gorm.DB, stream string, height int64) error {
	cp := &domain.Checkpoint{Stream: stream, BlockHeight: height, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stream"}},
			DoUpdates: clause.AssignmentColumns([]string{"block_height", "updated_at"}),
		}).
		Create(cp).Error
}
