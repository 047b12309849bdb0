package repo

import (
	"context"
	"testing"
	"time"
)

func TestStats_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, err := Stats(context.Background(), db); err == nil {
		t.Fatalf("expected error due to missing tables")
	}
}

func TestStats_ZeroRows(t *testing.T) {
	db := newMigratedDB(t)
	st, err := Stats(context.Background(), db)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st != (FeedStats{}) {
		t.Fatalf("expected zero stats, got %+v", st)
	}
}

func TestStats_CountAndMax(t *testing.T) {
	db := newMigratedDB(t)
	seedPost(t, db, "a", nil)
	last := seedPost(t, db, "b", nil)
	seedProof(t, db, "w1", "a", 1, time.Now())

	st, err := Stats(context.Background(), db)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Posts.Count != 2 || st.Posts.MaxID != last.ID {
		t.Fatalf("unexpected post stats: %+v", st.Posts)
	}
	if st.Proofs.Count != 1 || st.Events.Count != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
