package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traveler/traveler/internal/collect"
	"traveler/traveler/internal/config"
	"traveler/traveler/internal/dedupe"
	"traveler/traveler/internal/models"
	"traveler/traveler/internal/notes"
)

var now = time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

type stubCollector struct {
	items  []models.FeedItem
	report collect.Report
}

func (s stubCollector) Collect(context.Context, []config.Source) ([]models.FeedItem, collect.Report) {
	return s.items, s.report
}

type recordingNotes struct {
	requests []models.NoteRequest
	failURL  map[string]bool
}

func (r *recordingNotes) CreateNote(_ context.Context, req models.NoteRequest) (models.CreatedNote, error) {
	r.requests = append(r.requests, req)
	for url := range r.failURL {
		if strings.Contains(req.Content, "Source: "+url) {
			return models.CreatedNote{}, errors.New("rote HTTP 503")
		}
	}
	return models.CreatedNote{ID: "id", Title: req.Title}, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Interests = config.InterestsConfig{Include: []string{"rust"}, Exclude: []string{"ad"}}
	cfg.Ranking = config.RankingConfig{DailyLimit: 2, MinScore: 0.6, DedupeWindowDays: 14}
	return cfg
}

func newRunner(t *testing.T, cfg *config.Config, c Collector, n NoteCreator) (*Runner, *dedupe.FileStore) {
	t.Helper()
	store := dedupe.NewFileStore(filepath.Join(t.TempDir(), "seen.json"))
	r := NewRunner(cfg, c, store, n)
	r.now = func() time.Time { return now }
	return r, store
}

func TestRunOnce_WritesAndMarksSelected(t *testing.T) {
	items := []models.FeedItem{
		{Source: "news", Title: "Sponsored ad", URL: "https://n/ad"},
		{Source: "news", Title: "Rust 2.0 released", URL: "https://n/rust"},
		{Source: "news", Title: "Rust tips", URL: "https://n/tips"},
		{Source: "news", Title: "Weather", URL: "https://n/weather"},
	}
	rec := &recordingNotes{}
	r, store := newRunner(t, testConfig(), stubCollector{items: items, report: collect.Report{Attempted: 1}}, rec)

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Collected: 4, Selected: 2, Created: 2}, res)
	require.Len(t, rec.requests, 2)
	assert.Equal(t, "[news] Rust 2.0 released", rec.requests[0].Title)
	assert.Equal(t, "private", rec.requests[0].State)
	assert.Equal(t, []string{"inbox", "traveler"}, rec.requests[0].Tags)

	score, reasons, ok := notes.ParseProvenance(rec.requests[0].Content)
	require.True(t, ok)
	assert.InDelta(t, 0.85, score, 0.01)
	assert.Equal(t, []string{"matches_interests", "has_url"}, reasons)

	snap := store.Snapshot()
	assert.Equal(t, now.UnixMilli(), snap["https://n/rust"])
	assert.Equal(t, now.UnixMilli(), snap["https://n/tips"])
	assert.NotContains(t, snap, "https://n/weather")

	// Second run: both written items are now seen, only "Weather" scores 0.6.
	rec.requests = nil
	res, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, "[news] Weather", rec.requests[0].Title)
}

func TestRunOnce_FailedNoteStaysUnseen(t *testing.T) {
	items := []models.FeedItem{
		{Source: "s", Title: "Rust one", URL: "https://n/1"},
		{Source: "s", Title: "Rust two", URL: "https://n/2"},
	}
	rec := &recordingNotes{failURL: map[string]bool{"https://n/1": true}}
	r, store := newRunner(t, testConfig(), stubCollector{items: items, report: collect.Report{Attempted: 1}}, rec)

	res, err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "https://n/1")

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, rec.requests, 2, "a failure does not stop later items")

	snap := store.Snapshot()
	assert.NotContains(t, snap, "https://n/1")
	assert.Contains(t, snap, "https://n/2")
}

func TestRunOnce_NothingSelected(t *testing.T) {
	rec := &recordingNotes{}
	r, _ := newRunner(t, testConfig(), stubCollector{report: collect.Report{Attempted: 1}}, rec)

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Selected)
	assert.Empty(t, rec.requests)
}

func TestRunOnce_AllSourcesFailed(t *testing.T) {
	report := collect.Report{
		Attempted: 1,
		Failed:    []collect.SourceError{{Source: config.Source{URL: "https://x/feed"}, Err: errors.New("dns")}},
	}
	r, _ := newRunner(t, testConfig(), stubCollector{report: report}, &recordingNotes{})

	_, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
}

func TestRunOnce_OutputDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Output.Rote.Enabled = false
	items := []models.FeedItem{{Source: "s", Title: "Rust", URL: "https://n/1"}}
	rec := &recordingNotes{}
	r, store := newRunner(t, cfg, stubCollector{items: items, report: collect.Report{Attempted: 1}}, rec)

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Selected)
	assert.Empty(t, rec.requests)
	assert.Empty(t, store.Snapshot())
}

func TestRunOnce_DailyDigest(t *testing.T) {
	cfg := testConfig()
	cfg.Output.Rote.AddDailyDigest = true
	items := []models.FeedItem{{Source: "s", Title: "Rust", URL: "https://n/1"}}
	rec := &recordingNotes{}
	r, _ := newRunner(t, cfg, stubCollector{items: items, report: collect.Report{Attempted: 1}}, rec)

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Digest)
	require.Len(t, rec.requests, 2)
	assert.Equal(t, "[Traveler] Daily digest 2026-03-01", rec.requests[1].Title)
}

type pruningStore struct {
	*dedupe.FileStore
	cutoffs []time.Time
}

func (p *pruningStore) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	return 0, nil
}

func TestRunOnce_PrunesExpiredEntries(t *testing.T) {
	store := &pruningStore{FileStore: dedupe.NewFileStore(filepath.Join(t.TempDir(), "seen.json"))}
	r := NewRunner(testConfig(), stubCollector{report: collect.Report{Attempted: 1}}, store, &recordingNotes{})
	r.now = func() time.Time { return now }

	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, store.cutoffs, 1)
	assert.Equal(t, now.AddDate(0, 0, -14), store.cutoffs[0])
}
