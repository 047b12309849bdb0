package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-powboard/internal/domain"
)

var (
	winStart = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	winEnd   = time.Date(2023, 1, 31, 23, 59, 59, 0, time.UTC)
	window   = domain.Window{Start: winStart, End: winEnd}
)

func TestInsertProofIfAbsent_Idempotent(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	pr := &domain.Proof{TxID: "w1", Content: "p1", Difficulty: 1.5, Timestamp: tptr(winStart)}
	if ok, err := InsertProofIfAbsent(ctx, db, pr); err != nil || !ok {
		t.Fatalf("insert: ok=%v err=%v", ok, err)
	}
	dup := &domain.Proof{TxID: "w1", Content: "p1", Difficulty: 99, Timestamp: tptr(winStart)}
	if ok, err := InsertProofIfAbsent(ctx, db, dup); err != nil || ok {
		t.Fatalf("dup: ok=%v err=%v", ok, err)
	}
	got, err := ListProofs(ctx, db, "p1")
	if err != nil || len(got) != 1 || got[0].Difficulty != 1.5 {
		t.Fatalf("expected a single untouched proof, got %+v err=%v", got, err)
	}
}

func TestAggregateDifficulty_SumsWithinWindow(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	seedPost(t, db, "p1", nil)
	seedPost(t, db, "p2", nil)
	seedPost(t, db, "unboosted", nil)

	mid := winStart.Add(48 * time.Hour)
	seedProof(t, db, "w1", "p1", 3, mid)
	seedProof(t, db, "w2", "p1", 5, winStart) // inclusive start
	seedProof(t, db, "w3", "p1", 2, winEnd)   // inclusive end
	seedProof(t, db, "w4", "p1", 100, winEnd.Add(time.Second))
	seedProof(t, db, "w5", "p1", 100, winStart.Add(-time.Hour))
	seedProof(t, db, "w6", "p2", 4, mid)
	seedProof(t, db, "w7", "nobody", 50, mid) // proof for a post never ingested

	got, err := AggregateDifficulty(ctx, db, window, AggregateFilter{})
	if err != nil {
		t.Fatalf("AggregateDifficulty: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected only boosted posts, got %v", txIDs(got))
	}
	if got[0].TxID != "p1" || got[0].Difficulty != 10 {
		t.Fatalf("expected p1 with 10, got %s with %v", got[0].TxID, got[0].Difficulty)
	}
	if got[1].TxID != "p2" || got[1].Difficulty != 4 {
		t.Fatalf("expected p2 with 4, got %s with %v", got[1].TxID, got[1].Difficulty)
	}
	if got[0].Content != "content p1" {
		t.Fatalf("expected post fields to be populated, got %+v", got[0])
	}
}

func TestAggregateDifficulty_Filters(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	seedPost(t, db, "parent", nil)
	seedPost(t, db, "r1", strptr("parent"))
	seedPost(t, db, "r2", strptr("parent"))
	seedPost(t, db, "x", strptr("elsewhere"))

	mid := winStart.Add(time.Hour)
	seedProof(t, db, "w1", "parent", 7, mid)
	seedProof(t, db, "w2", "r2", 2, mid)
	seedProof(t, db, "w3", "x", 9, mid)

	one, err := AggregateDifficulty(ctx, db, window, AggregateFilter{TxID: "parent"})
	if err != nil || len(one) != 1 || one[0].Difficulty != 7 {
		t.Fatalf("tx filter: got %+v err=%v", one, err)
	}

	replies, err := AggregateDifficulty(ctx, db, window, AggregateFilter{ReplyTo: "parent"})
	if err != nil {
		t.Fatalf("reply filter: %v", err)
	}
	if ids := txIDs(replies); len(ids) != 1 || ids[0] != "r2" {
		t.Fatalf("expected only boosted reply r2, got %v", ids)
	}

	none, err := AggregateDifficulty(ctx, db, window, AggregateFilter{TxID: "r1"})
	if err != nil || len(none) != 0 {
		t.Fatalf("unboosted post must be absent, got %+v err=%v", none, err)
	}
}

func TestAggregateDifficulty_Error_NoTable(t *testing.T) {
	db := newTestDB(t, &domain.Post{})
	if _, err := AggregateDifficulty(context.Background(), db, window, AggregateFilter{}); err == nil {
		t.Fatalf("expected error due to missing proofs table")
	}
}
