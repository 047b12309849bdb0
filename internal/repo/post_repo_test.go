package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-powboard/internal/domain"
)

func TestInsertPostIfAbsent_UniquePerTransaction(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	p := &domain.Post{TxID: "p1", TxIndex: 0, Content: "hello"}
	if ok, err := InsertPostIfAbsent(ctx, db, p); err != nil || !ok {
		t.Fatalf("insert: ok=%v err=%v", ok, err)
	}
	if p.CreatedAt != nil {
		t.Fatalf("created_at must stay unset until resolved, got %v", p.CreatedAt)
	}

	// Same identity, and same transaction under another output index.
	for _, idx := range []int{0, 3} {
		dup := &domain.Post{TxID: "p1", TxIndex: idx, Content: "again"}
		if ok, err := InsertPostIfAbsent(ctx, db, dup); err != nil || ok {
			t.Fatalf("dup idx=%d: ok=%v err=%v", idx, ok, err)
		}
	}

	got, err := GetPostByTxID(ctx, db, "p1")
	if err != nil {
		t.Fatalf("GetPostByTxID: %v", err)
	}
	if got.Content != "hello" || got.CreatedAt != nil || got.Difficulty != 0 {
		t.Fatalf("unexpected stored post: %+v", got)
	}
}

func TestGetPostByTxID_NotFound(t *testing.T) {
	db := newMigratedDB(t)
	if _, err := GetPostByTxID(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePostCreatedAt_SuccessAndNotFound(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	seedPost(t, db, "p1", nil)

	at := time.Date(2022, 5, 1, 12, 30, 0, 0, time.UTC)
	if err := UpdatePostCreatedAt(ctx, db, "p1", at); err != nil {
		t.Fatalf("UpdatePostCreatedAt: %v", err)
	}
	got, err := GetPostByTxID(ctx, db, "p1")
	if err != nil {
		t.Fatalf("GetPostByTxID: %v", err)
	}
	if got.CreatedAt == nil || !got.CreatedAt.Equal(at) {
		t.Fatalf("expected created_at %v, got %v", at, got.CreatedAt)
	}

	if err := UpdatePostCreatedAt(ctx, db, "missing", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIncrementReplyCount(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	seedPost(t, db, "parent", nil)

	for i := 0; i < 2; i++ {
		if ok, err := IncrementReplyCount(ctx, db, "parent"); err != nil || !ok {
			t.Fatalf("increment #%d: ok=%v err=%v", i, ok, err)
		}
	}
	got, _ := GetPostByTxID(ctx, db, "parent")
	if got.ReplyCount != 2 {
		t.Fatalf("expected reply_count=2, got %d", got.ReplyCount)
	}

	if ok, err := IncrementReplyCount(ctx, db, "orphan-parent"); err != nil || ok {
		t.Fatalf("missing parent: ok=%v err=%v", ok, err)
	}
}

func TestListRecentPosts_ExcludeAndLimit(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		seedPost(t, db, id, nil)
	}

	all, err := ListRecentPosts(ctx, db, nil, 0)
	if err != nil {
		t.Fatalf("ListRecentPosts: %v", err)
	}
	if len(all) != 4 || all[0].TxID != "d" || all[3].TxID != "a" {
		t.Fatalf("expected newest first over all posts, got %+v", txIDs(all))
	}

	got, err := ListRecentPosts(ctx, db, []string{"d", "b"}, 0)
	if err != nil {
		t.Fatalf("ListRecentPosts exclude: %v", err)
	}
	if ids := txIDs(got); len(ids) != 2 || ids[0] != "c" || ids[1] != "a" {
		t.Fatalf("unexpected exclusion result: %v", ids)
	}

	capped, err := ListRecentPosts(ctx, db, nil, 3)
	if err != nil || len(capped) != 3 {
		t.Fatalf("expected 3 posts, got %d err=%v", len(capped), err)
	}
}

func TestListRepliesAndCount(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	seedPost(t, db, "parent", nil)
	seedPost(t, db, "r1", strptr("parent"))
	seedPost(t, db, "other", strptr("someone-else"))
	seedPost(t, db, "r2", strptr("parent"))

	got, err := ListReplies(ctx, db, "parent")
	if err != nil {
		t.Fatalf("ListReplies: %v", err)
	}
	if ids := txIDs(got); len(ids) != 2 || ids[0] != "r1" || ids[1] != "r2" {
		t.Fatalf("unexpected replies: %v", ids)
	}
	n, err := CountReplies(ctx, db, "parent")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 replies, got %d err=%v", n, err)
	}
}

func txIDs(ps []domain.Post) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.TxID
	}
	return out
}
