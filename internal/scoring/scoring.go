// Package scoring rates feed items against keyword interests.
package scoring

import (
	"strings"

	"traveler/traveler/internal/models"
)

// Score rule weights.
const (
	Baseline       = 0.5
	InterestBonus  = 0.25
	ExcludePenalty = 0.35
	URLBonus       = 0.10
)

// Reasons attached to a scored item, in the order the rules are applied.
const (
	ReasonMatchesInterests = "matches_interests"
	ReasonMatchesExcluded  = "matches_excluded"
	ReasonHasURL           = "has_url"
)

// Interests are the include and exclude keyword lists.
type Interests struct {
	Include []string
	Exclude []string
}

// Score rates item. It is pure and never fails.
func Score(item models.FeedItem, in Interests) models.ScoredItem {
	text := strings.ToLower(strings.TrimSpace(item.Title + "\n" + item.Summary))

	score := Baseline
	reasons := []string{}

	if containsAny(text, in.Include) {
		score += InterestBonus
		reasons = append(reasons, ReasonMatchesInterests)
	}
	if containsAny(text, in.Exclude) {
		score -= ExcludePenalty
		reasons = append(reasons, ReasonMatchesExcluded)
	}
	if strings.HasPrefix(item.URL, "http") {
		score += URLBonus
		reasons = append(reasons, ReasonHasURL)
	}

	return models.ScoredItem{
		FeedItem: item,
		Score:    clamp(score),
		Reasons:  reasons,
	}
}

// containsAny reports whether any non-empty keyword occurs in the already lowercased text.
func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
