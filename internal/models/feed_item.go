package models

import "time"

// FeedItem is one candidate produced by the collector. The URL is its unique key.
type FeedItem struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at,omitzero"` // zero when the feed did not say
	Summary     string    `json:"summary,omitempty"`
}

// ScoredItem is a FeedItem annotated by the scoring engine.
// Reasons are in the order the rules fired.
type ScoredItem struct {
	FeedItem
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}
