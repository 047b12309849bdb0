package services

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tbourn/go-powboard/internal/domain"
)

func TestRank_Example(t *testing.T) {
	boosted := []domain.Post{{ID: 1, TxID: "A", Difficulty: 10}, {ID: 2, TxID: "B", Difficulty: 4}}
	unboosted := []domain.Post{{ID: 3, TxID: "C", Difficulty: 99}, {ID: 1, TxID: "A"}}

	got := Rank(boosted, unboosted)
	if g := ids(got); len(g) != 3 || g[0] != "A" || g[1] != "B" || g[2] != "C" {
		t.Fatalf("expected [A B C], got %v", g)
	}
	if got[2].Difficulty != 0 {
		t.Fatalf("unboosted entries must be zero-filled, got %v", got[2].Difficulty)
	}
	if unboosted[0].Difficulty != 99 {
		t.Fatalf("Rank must not modify its inputs")
	}
}

// genPosts builds posts with unique ids and tx ids from generated
// difficulty buckets and optional confirmation hours.
func genPosts(diffs []uint8, hours []int8) []domain.Post {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Post, len(diffs))
	for i, d := range diffs {
		p := domain.Post{ID: uint(i + 1), TxID: fmt.Sprintf("tx%03d", i), Difficulty: float64(d % 5)}
		if i < len(hours) && hours[i] >= 0 {
			at := base.Add(time.Duration(hours[i]%4) * time.Hour)
			p.CreatedAt = &at
		}
		out[i] = p
	}
	return out
}

func TestRank_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("output is ordered by Less", prop.ForAll(
		func(diffs []uint8, hours []int8) bool {
			ranked := Rank(genPosts(diffs, hours), nil)
			for i := 1; i < len(ranked); i++ {
				if Less(ranked[i], ranked[i-1]) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.Int8()),
	))

	properties.Property("order does not depend on input order", prop.ForAll(
		func(diffs []uint8, hours []int8, seed int64) bool {
			posts := genPosts(diffs, hours)
			shuffled := append([]domain.Post(nil), posts...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			a, b := Rank(posts, nil), Rank(shuffled, nil)
			for i := range a {
				if a[i].TxID != b[i].TxID {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.Int8()),
		gen.Int64(),
	))

	properties.Property("unboosted entries are zero-filled and deduplicated", prop.ForAll(
		func(diffs []uint8, split int) bool {
			posts := genPosts(diffs, nil)
			if len(posts) == 0 {
				return len(Rank(nil, nil)) == 0
			}
			k := split % (len(posts) + 1)
			boosted := posts[:k]
			// Unboosted side sees every post, boosted ones included.
			ranked := Rank(boosted, posts)
			if len(ranked) != len(posts) {
				return false
			}
			isBoosted := map[string]bool{}
			for _, p := range boosted {
				isBoosted[p.TxID] = true
			}
			for _, p := range ranked {
				if !isBoosted[p.TxID] && p.Difficulty != 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8()),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
