// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Event model.
//
// Inserts are insert-if-absent: the natural key (tx_id, tx_index) carries a
// unique index and the INSERT uses ON CONFLICT DO NOTHING, so concurrent or
// replayed deliveries never create a second row and never fail. The boolean
// result reports whether this call created the row.
//
// Error semantics:
//   - When an event is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (connectivity issues, missing tables, ...), the raw gorm
//     error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-powboard/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// insertIfAbsent performs an INSERT ... ON CONFLICT DO NOTHING and reports
// whether a row was written.
func insertIfAbsent(ctx context.Context, db *gorm.DB, row any) (bool, error) {
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// InsertEventIfAbsent stores e unless an event with the same (tx_id, tx_index)
// already exists.
func InsertEventIfAbsent(ctx context.Context, db *gorm.DB, e *domain.Event) (bool, error) {
	return insertIfAbsent(ctx, db, e)
}

// GetEvent fetches the event identified by (txID, txIndex).
func GetEvent(ctx context.Context, db *gorm.DB, txID string, txIndex int) (*domain.Event, error) {
	var e domain.Event
	if err := db.WithContext(ctx).
		Where("tx_id = ? AND tx_index = ?", txID, txIndex).
		First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// CountEvents uses a raw COUNT so a missing table surfaces as an error.
func CountEvents(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM events").Scan(&total).Error
	return total, err
}
