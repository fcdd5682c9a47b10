// Package collect fetches configured feeds concurrently and normalizes their items.
package collect

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"traveler/traveler/internal/config"
	"traveler/traveler/internal/metrics"
	"traveler/traveler/internal/models"
)

// MaxTextLen bounds titles, URLs and summaries, in runes.
const MaxTextLen = 20000

// Entry is one raw item as returned by a Fetcher.
type Entry struct {
	Title       string
	URL         string
	Summary     string
	PublishedAt time.Time
}

// Fetcher retrieves and parses a single feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]Entry, error)
}

// SourceError records a source that could not be fetched.
type SourceError struct {
	Source config.Source
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %s (%s): %v", e.Source.DisplayName(), e.Source.URL, e.Err)
}

func (e SourceError) Unwrap() error { return e.Err }

// Report summarizes one Collect call.
type Report struct {
	Attempted int
	Skipped   int
	Failed    []SourceError
	Items     int
	Dropped   int
}

// AllFailed reports whether every attempted source failed.
func (r Report) AllFailed() bool {
	return r.Attempted > 0 && len(r.Failed) == r.Attempted
}

// Options tunes a Collector.
type Options struct {
	Workers      int
	HostInterval time.Duration
}

// Collector fetches sources with a bounded worker pool and per-host rate limiting.
type Collector struct {
	fetcher      Fetcher
	workers      int
	hostInterval time.Duration
	policy       *bluemonday.Policy

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Collector around fetcher.
func New(fetcher Fetcher, opts Options) *Collector {
	if opts.Workers <= 0 {
		opts.Workers = config.DefaultFetchWorkers
	}
	return &Collector{
		fetcher:      fetcher,
		workers:      opts.Workers,
		hostInterval: opts.HostInterval,
		policy:       bluemonday.StrictPolicy(),
		limiters:     make(map[string]*rate.Limiter),
	}
}

type sourceResult struct {
	items   []models.FeedItem
	dropped int
	err     error
	ran     bool
}

// Collect fetches every rss source. A failing source is logged and reported
// and never stops the others. Items keep source order, then feed order.
func (c *Collector) Collect(ctx context.Context, sources []config.Source) ([]models.FeedItem, Report) {
	results := make([]sourceResult, len(sources))
	var report Report

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, src := range sources {
		if src.Type != config.SourceTypeRSS {
			log.Warn().
				Str("type", src.Type).
				Str("url", src.URL).
				Msg("Skipping source with unsupported type")
			report.Skipped++
			continue
		}

		g.Go(func() error {
			items, dropped, err := c.collectOne(gctx, src)
			results[i] = sourceResult{items: items, dropped: dropped, err: err, ran: true}
			return nil
		})
	}
	_ = g.Wait()

	var all []models.FeedItem
	for i, res := range results {
		if !res.ran {
			continue
		}
		report.Attempted++
		if res.err != nil {
			report.Failed = append(report.Failed, SourceError{Source: sources[i], Err: res.err})
			continue
		}
		all = append(all, res.items...)
		report.Dropped += res.dropped
	}
	report.Items = len(all)

	for _, f := range report.Failed {
		log.Error().Err(f.Err).Str("source", f.Source.DisplayName()).Str("url", f.Source.URL).Msg("Feed fetch failed")
	}
	log.Info().
		Int("attempted", report.Attempted).
		Int("failed", len(report.Failed)).
		Int("skipped", report.Skipped).
		Int("items", report.Items).
		Int("dropped", report.Dropped).
		Msg("Collection finished")

	return all, report
}

func (c *Collector) collectOne(ctx context.Context, src config.Source) ([]models.FeedItem, int, error) {
	if err := c.limiterFor(src.URL).Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	start := time.Now()
	entries, err := c.fetcher.Fetch(ctx, src.URL)
	metrics.RecordFetch(err, time.Since(start).Seconds())
	if err != nil {
		return nil, 0, err
	}

	name := src.DisplayName()
	items := make([]models.FeedItem, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		item := models.FeedItem{
			Source:      name,
			Title:       clip(c.plainText(e.Title)),
			URL:         clip(e.URL),
			Summary:     clip(c.plainText(e.Summary)),
			PublishedAt: e.PublishedAt,
		}
		if item.Title == "" || item.URL == "" {
			log.Debug().Str("source", name).Str("url", e.URL).Msg("Dropping item without title or link")
			dropped++
			continue
		}
		items = append(items, item)
	}

	log.Debug().
		Str("source", name).
		Int("items", len(items)).
		Msg("Feed processed successfully")
	return items, dropped, nil
}

func (c *Collector) plainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(c.policy.Sanitize(s))), " ")
}

// limiterFor returns the limiter shared by every source on the same host.
func (c *Collector) limiterFor(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.limiters[host]; ok {
		return l
	}
	limit := rate.Inf
	if c.hostInterval > 0 {
		limit = rate.Every(c.hostInterval)
	}
	l := rate.NewLimiter(limit, 1)
	c.limiters[host] = l
	return l
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	n := 0
	for i := range s {
		if n == MaxTextLen {
			return s[:i]
		}
		n++
	}
	return s
}
