// Package selection turns candidate feed items into the ranked, capped set worth writing up.
package selection

import (
	"cmp"
	"slices"
	"time"

	"traveler/traveler/internal/models"
	"traveler/traveler/internal/scoring"
)

// Policy bounds a single run.
type Policy struct {
	DailyLimit       int
	MinScore         float64
	DedupeWindowDays int
}

// SeenChecker answers dedupe queries. dedupe.Snapshot implements it.
type SeenChecker interface {
	IsSeen(url string, windowDays int, now time.Time) bool
}

// Select drops seen items, scores the rest, sorts them by descending score
// keeping arrival order for ties, drops those under the minimum score and
// returns at most DailyLimit of them. It never marks anything seen.
func Select(items []models.FeedItem, policy Policy, in scoring.Interests, seen SeenChecker, now time.Time) []models.ScoredItem {
	scored := make([]models.ScoredItem, 0, len(items))
	for _, item := range items {
		if seen != nil && seen.IsSeen(item.URL, policy.DedupeWindowDays, now) {
			continue
		}
		scored = append(scored, scoring.Score(item, in))
	}

	slices.SortStableFunc(scored, func(a, b models.ScoredItem) int {
		return cmp.Compare(b.Score, a.Score)
	})

	limit := max(policy.DailyLimit, 0)
	out := make([]models.ScoredItem, 0, min(limit, len(scored)))
	for _, s := range scored {
		if len(out) == limit {
			break
		}
		if s.Score < policy.MinScore {
			// sorted descending, nothing after this qualifies
			break
		}
		out = append(out, s)
	}
	return out
}
