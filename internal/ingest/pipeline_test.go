package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-powboard/internal/decode"
	"github.com/tbourn/go-powboard/internal/domain"
	"github.com/tbourn/go-powboard/internal/repo"
	"github.com/tbourn/go-powboard/internal/services"
)

const (
	testApp   = "1HWaEAD5TXC2fWHDiua9Vue3Mf8V1ZmakN"
	testBoost = "18pPQigu7j69ioDcUG9dACE1iAN9nCfowr"
)

func newIngestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ingest_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	// Streams write concurrently; shared-cache memory databases lock whole
	// tables, so route every statement through one connection.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestPipeline(t *testing.T, db *gorm.DB) (*Pipeline, *Queue) {
	t.Helper()
	q := NewQueue(context.Background(), services.NewIngestService(db, nil, nil))
	t.Cleanup(q.Close)
	d := &decode.Decoder{AppID: testApp, BoostAppID: testBoost, Source: "test"}
	return NewPipeline(d, q), q
}

func record(txID string, outputs ...string) []byte {
	out := ""
	for i, o := range outputs {
		if i > 0 {
			out += ","
		}
		out += o
	}
	return []byte(`{"tx":{"h":"` + txID + `"},"blk":{"i":739000,"t":1650000000},"out":[` + out + `]}`)
}

func postOutput(i int, content string) string {
	return fmt.Sprintf(`{"i":%d,"s2":"onchain","s3":%q,"s4":"post","s5":{"content":%q}}`, i, testApp, content)
}

func proofOutput(i int, target string, difficulty float64) string {
	return fmt.Sprintf(`{"i":%d,"s2":"onchain","s3":%q,"s4":"proof","s5":{"content":%q,"difficulty":%v}}`, i, testBoost, target, difficulty)
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestPipeline_ConcurrentDeliveriesStoreOnce(t *testing.T) {
	for _, n := range []int{1, 2, 16} {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			db := newIngestDB(t)
			p, q := newTestPipeline(t, db)
			rec := record("aa", postOutput(0, "hello"))

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := p.HandleJSON(context.Background(), rec); err != nil {
						t.Errorf("HandleJSON: %v", err)
					}
				}()
			}
			wg.Wait()
			q.Wait()

			if got := count(t, db, &domain.Event{}); got != 1 {
				t.Fatalf("expected 1 event, got %d", got)
			}
			if got := count(t, db, &domain.Post{}); got != 1 {
				t.Fatalf("expected 1 post, got %d", got)
			}
		})
	}
}

func TestPipeline_MalformedOutputDoesNotStopSiblings(t *testing.T) {
	db := newIngestDB(t)
	p, q := newTestPipeline(t, db)

	bad := fmt.Sprintf(`{"i":1,"s2":"onchain","s3":%q,"s4":"post","s5":"{not json"}`, testApp)
	rec := record("bb", postOutput(0, "good"), bad, proofOutput(2, "bb", 3))
	if err := p.HandleJSON(context.Background(), rec); err != nil {
		t.Fatalf("HandleJSON: %v", err)
	}
	q.Wait()

	if got := count(t, db, &domain.Event{}); got != 2 {
		t.Fatalf("expected the 2 valid outputs stored, got %d", got)
	}
	if got := count(t, db, &domain.Proof{}); got != 1 {
		t.Fatalf("expected 1 proof, got %d", got)
	}
}

func TestPipeline_RejectsBrokenRecords(t *testing.T) {
	db := newIngestDB(t)
	p, _ := newTestPipeline(t, db)

	if err := p.HandleJSON(context.Background(), []byte(`{"tx":`)); err == nil {
		t.Fatalf("expected malformed JSON error")
	}
	if err := p.HandleJSON(context.Background(), []byte(`{"out":[]}`)); err == nil {
		t.Fatalf("expected missing txid error")
	}
}

func TestPipeline_ClosedQueue(t *testing.T) {
	db := newIngestDB(t)
	p, q := newTestPipeline(t, db)
	q.Close()
	if err := p.HandleJSON(context.Background(), record("cc", postOutput(0, "x"))); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
