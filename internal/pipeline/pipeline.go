// Package pipeline runs one collect, select, write and mark pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"traveler/traveler/internal/collect"
	"traveler/traveler/internal/config"
	"traveler/traveler/internal/dedupe"
	"traveler/traveler/internal/metrics"
	"traveler/traveler/internal/models"
	"traveler/traveler/internal/notes"
	"traveler/traveler/internal/scoring"
	"traveler/traveler/internal/selection"
)

// Collector produces candidate items from the configured sources.
type Collector interface {
	Collect(ctx context.Context, sources []config.Source) ([]models.FeedItem, collect.Report)
}

// NoteCreator writes a note downstream.
type NoteCreator interface {
	CreateNote(ctx context.Context, req models.NoteRequest) (models.CreatedNote, error)
}

// Pruner is implemented by stores that can drop entries older than any window.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// ErrAllSourcesFailed is returned when no configured source could be fetched.
var ErrAllSourcesFailed = errors.New("all sources failed")

// Result counts what one run did.
type Result struct {
	Collected     int
	SourcesFailed int
	Selected      int
	Created       int
	Failed        int
	Digest        bool
}

// Runner wires the pipeline stages together.
type Runner struct {
	cfg       *config.Config
	collector Collector
	store     dedupe.Store
	notes     NoteCreator
	now       func() time.Time
}

// NewRunner creates a runner. notes may be nil when output.rote.enabled is false.
func NewRunner(cfg *config.Config, collector Collector, store dedupe.Store, notes NoteCreator) *Runner {
	return &Runner{
		cfg:       cfg,
		collector: collector,
		store:     store,
		notes:     notes,
		now:       time.Now,
	}
}

// RunOnce performs a single pass. A failed note is logged and left unmarked so
// the next run retries it; the returned error joins every such failure.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	var result Result

	items, report := r.collector.Collect(ctx, r.cfg.Sources)
	result.Collected = len(items)
	result.SourcesFailed = len(report.Failed)
	if report.AllFailed() {
		errs := make([]error, 0, len(report.Failed))
		for _, f := range report.Failed {
			errs = append(errs, f)
		}
		return result, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	}

	policy := selection.Policy{
		DailyLimit:       r.cfg.Ranking.DailyLimit,
		MinScore:         r.cfg.Ranking.MinScore,
		DedupeWindowDays: r.cfg.Ranking.DedupeWindowDays,
	}
	interests := scoring.Interests{
		Include: r.cfg.Interests.Include,
		Exclude: r.cfg.Interests.Exclude,
	}

	now := r.now()
	picked := selection.Select(items, policy, interests, r.store.Snapshot(), now)
	result.Selected = len(picked)
	metrics.ItemsSelected.Add(float64(len(picked)))

	if len(picked) == 0 {
		log.Info().Int("candidates", len(items)).Msg("No items selected today.")
		r.prune(ctx, now)
		return result, nil
	}

	if !r.cfg.Output.Rote.Enabled || r.notes == nil {
		for _, item := range picked {
			log.Info().
				Str("url", item.URL).
				Str("title", item.Title).
				Float64("score", item.Score).
				Msg("Selected item (note output disabled)")
		}
		return result, nil
	}

	tags := r.cfg.NoteTags()
	var errs []error
	var written []models.ScoredItem

	for _, item := range picked {
		note := notes.FormatItem(item, r.cfg.Persona.Name)
		created, err := r.notes.CreateNote(ctx, models.NewNoteRequest(note, tags))
		metrics.RecordNote("feed", err)
		if err != nil {
			log.Error().Err(err).Str("url", item.URL).Msg("Failed to create note")
			result.Failed++
			errs = append(errs, fmt.Errorf("creating note for %s: %w", item.URL, err))
			continue
		}

		if err := r.store.MarkSeen(item.URL, r.now()); err != nil {
			log.Error().Err(err).Str("url", item.URL).Msg("Failed to mark item seen")
			errs = append(errs, err)
		}
		result.Created++
		written = append(written, item)

		log.Info().
			Str("id", created.ID).
			Str("title", created.Title).
			Msg("Wrote note")
	}

	if r.cfg.Output.Rote.AddDailyDigest && len(written) > 0 {
		digest := notes.FormatDigest(written, r.cfg.Persona.Name, now)
		created, err := r.notes.CreateNote(ctx, models.NewNoteRequest(digest, tags))
		metrics.RecordNote("digest", err)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create daily digest")
			errs = append(errs, fmt.Errorf("creating daily digest: %w", err))
		} else {
			result.Digest = true
			log.Info().Str("id", created.ID).Msg("Wrote daily digest")
		}
	}

	r.prune(ctx, now)

	return result, errors.Join(errs...)
}

func (r *Runner) prune(ctx context.Context, now time.Time) {
	p, ok := r.store.(Pruner)
	if !ok {
		return
	}
	cutoff := now.AddDate(0, 0, -r.cfg.Ranking.DedupeWindowDays)
	n, err := p.Prune(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to prune dedupe store")
		return
	}
	if n > 0 {
		log.Info().Int64("rows_affected", n).Msg("Pruned expired dedupe entries")
	}
}
