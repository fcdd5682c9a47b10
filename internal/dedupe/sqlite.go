package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"traveler/traveler/internal/database"
)

type seenRow struct {
	URL        string `db:"url"`
	LastSeenMs int64  `db:"last_seen_ms"`
}

// SQLiteStore keeps the mapping in the "seen" table of a SQLite database.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore wraps an open database whose migrations have been applied.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Snapshot implements Store.
func (s *SQLiteStore) Snapshot() Snapshot {
	var rows []seenRow
	if err := s.db.Select(&rows, `SELECT url, last_seen_ms FROM seen`); err != nil {
		log.Warn().Err(err).Msg("Dedupe table unreadable, treating as empty")
		return Snapshot{}
	}

	snap := make(Snapshot, len(rows))
	for _, r := range rows {
		snap[r.URL] = r.LastSeenMs
	}
	return snap
}

// MarkSeen implements Store.
func (s *SQLiteStore) MarkSeen(url string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO seen (url, last_seen_ms) VALUES (?, ?)
		ON CONFLICT(url) DO UPDATE SET last_seen_ms = excluded.last_seen_ms`,
		url, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("marking %s seen: %w", url, err)
	}
	return nil
}

// Prune deletes entries last seen before cutoff. Such entries can no longer
// make an item count as seen for any window ending after cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM seen WHERE last_seen_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune dedupe table: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		log.Warn().Err(err).Msg("Could not get RowsAffected after pruning dedupe table")
		return 0, nil
	}
	return n, nil
}
