package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-powboard/internal/domain"
)

func TestInsertEventIfAbsent_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	ok, err := InsertEventIfAbsent(context.Background(), db, &domain.Event{TxID: "a", Kind: "post", Key: "post", AppID: "app"})
	if err == nil || ok {
		t.Fatalf("expected error without table, got ok=%v err=%v", ok, err)
	}
}

func TestInsertEventIfAbsent_SecondDeliveryIsNoop(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	first := &domain.Event{TxID: "tx1", TxIndex: 0, AppID: "app", Kind: "post", Key: "post", Value: `{"content":"hi"}`, Source: "test"}
	ok, err := InsertEventIfAbsent(ctx, db, first)
	if err != nil || !ok {
		t.Fatalf("first insert: ok=%v err=%v", ok, err)
	}
	if first.ID == 0 || first.ObservedAt.IsZero() {
		t.Fatalf("expected id and observed_at to be set, got %+v", first)
	}

	again := &domain.Event{TxID: "tx1", TxIndex: 0, AppID: "app", Kind: "post", Key: "post", Value: `{"content":"changed"}`, Source: "test"}
	ok, err = InsertEventIfAbsent(ctx, db, again)
	if err != nil || ok {
		t.Fatalf("duplicate insert: ok=%v err=%v", ok, err)
	}

	// A different output of the same transaction is a new identity.
	other := &domain.Event{TxID: "tx1", TxIndex: 1, AppID: "app", Kind: "post", Key: "post", Value: `{}`}
	if ok, err := InsertEventIfAbsent(ctx, db, other); err != nil || !ok {
		t.Fatalf("second output insert: ok=%v err=%v", ok, err)
	}

	n, err := CountEvents(ctx, db)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 events, got %d err=%v", n, err)
	}
	got, err := GetEvent(ctx, db, "tx1", 0)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.Value != `{"content":"hi"}` {
		t.Fatalf("stored event was overwritten: %q", got.Value)
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	db := newMigratedDB(t)
	_, err := GetEvent(context.Background(), db, "missing", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCountEvents_Error_NoTable(t *testing.T) {
	db := newTestDB(t)
	if _, err := CountEvents(context.Background(), db); err == nil {
		t.Fatalf("expected error due to missing events table")
	}
}
