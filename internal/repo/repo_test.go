package repo

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-powboard/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newMigratedDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newTestDB(t, &domain.Event{}, &domain.Post{}, &domain.Proof{}, &domain.Checkpoint{})
}

func strptr(s string) *string { return &s }

func tptr(t time.Time) *time.Time { return &t }

func seedPost(t *testing.T, db *gorm.DB, txID string, replyTo *string) *domain.Post {
	t.Helper()
	p := &domain.Post{TxID: txID, Content: "content " + txID, ReplyTxID: replyTo}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed post %s: %v", txID, err)
	}
	return p
}

func seedProof(t *testing.T, db *gorm.DB, txID, target string, difficulty float64, at time.Time) {
	t.Helper()
	pr := &domain.Proof{TxID: txID, Content: target, Difficulty: difficulty, Timestamp: tptr(at.UTC())}
	if err := db.Create(pr).Error; err != nil {
		t.Fatalf("seed proof %s: %v", txID, err)
	}
}
