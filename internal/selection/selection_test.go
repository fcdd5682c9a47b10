package selection

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traveler/traveler/internal/dedupe"
	"traveler/traveler/internal/models"
	"traveler/traveler/internal/scoring"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSelect_RustScenario(t *testing.T) {
	items := []models.FeedItem{
		{Source: "news", Title: "Sponsored ad"},
		{Source: "news", Title: "Rust 2.0 released", URL: "https://news.example/rust-2"},
	}
	in := scoring.Interests{Include: []string{"rust"}, Exclude: []string{"ad"}}

	got := Select(items, Policy{DailyLimit: 1, MinScore: 0.6, DedupeWindowDays: 14}, in, dedupe.Snapshot{}, now)

	require.Len(t, got, 1)
	assert.Equal(t, "Rust 2.0 released", got[0].Title)
	assert.InDelta(t, 0.85, got[0].Score, 1e-9)
	assert.Equal(t, []string{scoring.ReasonMatchesInterests, scoring.ReasonHasURL}, got[0].Reasons)

	assert.InDelta(t, 0.15, scoring.Score(items[0], in).Score, 1e-9)
}

func TestSelect_SkipsSeen(t *testing.T) {
	items := []models.FeedItem{
		{Title: "a", URL: "https://x/a"},
		{Title: "b", URL: "https://x/b"},
	}
	seen := dedupe.Snapshot{
		"https://x/a": now.Add(-time.Hour).UnixMilli(),
		"https://x/b": now.Add(-20 * 24 * time.Hour).UnixMilli(),
	}

	got := Select(items, Policy{DailyLimit: 5, DedupeWindowDays: 14}, scoring.Interests{}, seen, now)

	require.Len(t, got, 1)
	assert.Equal(t, "https://x/b", got[0].URL)
}

func TestSelect_StableTies(t *testing.T) {
	items := []models.FeedItem{
		{Title: "first", URL: "https://x/1"},
		{Title: "plain"},
		{Title: "second", URL: "https://x/2"},
		{Title: "third", URL: "https://x/3"},
	}

	got := Select(items, Policy{DailyLimit: 10}, scoring.Interests{}, nil, now)

	titles := make([]string, len(got))
	for i, s := range got {
		titles[i] = s.Title
	}
	assert.Equal(t, []string{"first", "second", "third", "plain"}, titles)
}

func TestSelect_ZeroOrNegativeLimit(t *testing.T) {
	items := []models.FeedItem{{Title: "a", URL: "https://x/a"}}
	assert.Empty(t, Select(items, Policy{DailyLimit: 0}, scoring.Interests{}, nil, now))
	assert.Empty(t, Select(items, Policy{DailyLimit: -1}, scoring.Interests{}, nil, now))
}

func TestSelect_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	words := []string{"go", "rust", "ad", "news", "release", "crypto"}
	in := scoring.Interests{Include: []string{"go", "rust"}, Exclude: []string{"crypto"}}

	for round := 0; round < 200; round++ {
		n := rng.IntN(20)
		items := make([]models.FeedItem, n)
		seen := dedupe.Snapshot{}
		for i := range items {
			items[i] = models.FeedItem{
				Title: words[rng.IntN(len(words))] + " " + words[rng.IntN(len(words))],
				URL:   fmt.Sprintf("https://x/%d/%d", round, i),
			}
			if rng.IntN(3) == 0 {
				items[i].URL = fmt.Sprintf("gopher://x/%d/%d", round, i)
			}
			if rng.IntN(4) == 0 {
				seen[items[i].URL] = now.Add(-time.Duration(rng.IntN(20)) * 24 * time.Hour).UnixMilli()
			}
		}
		policy := Policy{
			DailyLimit:       rng.IntN(6),
			MinScore:         float64(rng.IntN(11)) / 10,
			DedupeWindowDays: rng.IntN(15),
		}

		got := Select(items, policy, in, seen, now)

		assert.LessOrEqual(t, len(got), policy.DailyLimit)
		for i, s := range got {
			assert.GreaterOrEqual(t, s.Score, policy.MinScore)
			assert.False(t, seen.IsSeen(s.URL, policy.DedupeWindowDays, now), s.URL)
			if i > 0 {
				assert.GreaterOrEqual(t, got[i-1].Score, s.Score)
			}
		}
	}
}
