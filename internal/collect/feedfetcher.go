package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/reddot-watch/feedfetcher"

	"traveler/traveler/internal/config"
	"traveler/traveler/internal/notes"
)

const futureDriftTolerance = 12 * time.Hour

// FeedFetcher adapts feedfetcher to the Fetcher interface.
type FeedFetcher struct {
	fetcher *feedfetcher.FeedFetcher
}

// NewFeedFetcher builds a fetcher from the fetch settings.
func NewFeedFetcher(cfg config.FetchConfig) *FeedFetcher {
	return &FeedFetcher{
		fetcher: feedfetcher.NewFeedFetcher(feedfetcher.Config{
			UserAgent:            cfg.UserAgent,
			RequestTimeout:       cfg.Timeout,
			MaxItems:             cfg.MaxItems,
			MaxHeadingLength:     notes.MaxTitleLen,
			MaxAge:               cfg.MaxAge,
			FutureDriftTolerance: futureDriftTolerance,
		}),
	}
}

// Fetch implements Fetcher.
func (f *FeedFetcher) Fetch(ctx context.Context, url string) ([]Entry, error) {
	items, err := f.fetcher.FetchAndProcess(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{
			Title:       item.Headline,
			URL:         item.URL,
			Summary:     item.Content,
			PublishedAt: item.PublishedAt,
		})
	}
	return entries, nil
}
