package services

import (
	"sort"

	"github.com/tbourn/go-powboard/internal/domain"
)

// Rank merges boosted posts (Difficulty already aggregated) with unboosted
// ones (Difficulty forced to 0) and orders the result by Less. A post present
// in both inputs keeps its boosted entry. Inputs are not modified.
func Rank(boosted, unboosted []domain.Post) []domain.Post {
	out := make([]domain.Post, 0, len(boosted)+len(unboosted))
	seen := make(map[string]struct{}, len(boosted))
	for _, p := range boosted {
		seen[p.TxID] = struct{}{}
		out = append(out, p)
	}
	for _, p := range unboosted {
		if _, dup := seen[p.TxID]; dup {
			continue
		}
		p.Difficulty = 0
		out = append(out, p)
	}
	SortPosts(out)
	return out
}

// SortPosts sorts ps in place by Less.
func SortPosts(ps []domain.Post) {
	sort.SliceStable(ps, func(i, j int) bool { return Less(ps[i], ps[j]) })
}

// Less is the feed order: higher difficulty first, then more recently
// confirmed (unresolved confirmation times last), then higher id.
func Less(a, b domain.Post) bool {
	if a.Difficulty != b.Difficulty {
		return a.Difficulty > b.Difficulty
	}
	switch {
	case a.CreatedAt != nil && b.CreatedAt == nil:
		return true
	case a.CreatedAt == nil && b.CreatedAt != nil:
		return false
	case a.CreatedAt != nil && b.CreatedAt != nil && !a.CreatedAt.Equal(*b.CreatedAt):
		return a.CreatedAt.After(*b.CreatedAt)
	}
	return a.ID > b.ID
}
