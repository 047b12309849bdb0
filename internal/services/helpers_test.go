package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-powboard/internal/domain"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
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
	if migrate {
		if err := db.AutoMigrate(&domain.Event{}, &domain.Post{}, &domain.Proof{}, &domain.Checkpoint{}); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// fakeResolver returns fixed confirmation times and counts lookups.
type fakeResolver struct {
	mu    sync.Mutex
	times map[string]time.Time
	calls int
}

func (f *fakeResolver) ConfirmationTime(_ context.Context, txID string) *time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	t, ok := f.times[txID]
	if !ok {
		return nil
	}
	return &t
}

func (f *fakeResolver) set(txID string, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.times == nil {
		f.times = map[string]time.Time{}
	}
	f.times[txID] = t
}

func (f *fakeResolver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingCache records invalidations on top of a no-op cache.
type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (r *recordingCache) Get(context.Context, string) (*domain.Post, bool) { return nil, false }
func (r *recordingCache) Set(context.Context, *domain.Post)               {}
func (r *recordingCache) Invalidate(_ context.Context, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, ids...)
}

func postEvent(txID string, idx int, content string) domain.DecodedEvent {
	return domain.DecodedEvent{
		Ref:   domain.TxRef{TxID: txID, TxIndex: idx},
		Kind:  domain.KindPost,
		AppID: "app",
		Key:   "post",
		Value: []byte(`{"content":"` + content + `"}`),
		Post:  &domain.PostPayload{Content: content},
	}
}

func replyEvent(txID, parent, content string) domain.DecodedEvent {
	ev := postEvent(txID, 0, content)
	ev.Kind = domain.KindReply
	ev.Post.ReplyTxID = parent
	return ev
}

func proofEvent(txID, target string, difficulty float64) domain.DecodedEvent {
	return domain.DecodedEvent{
		Ref:   domain.TxRef{TxID: txID},
		Kind:  domain.KindProof,
		AppID: "boost",
		Key:   "proof",
		Value: []byte(`{}`),
		Proof: &domain.ProofPayload{Content: target, Difficulty: difficulty},
	}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}
