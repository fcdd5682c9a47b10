package dedupe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

type seenDocument struct {
	Seen map[string]int64 `json:"seen"`
}

// FileStore keeps the mapping in a single JSON document, {"seen": {url: unixMs}},
// read in full before every query and rewritten in full on every mutation.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the JSON document at path. Nothing is
// read or created until first use.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the JSON document.
func (s *FileStore) Path() string { return s.path }

// Snapshot implements Store. A missing, unreadable or corrupt document is an empty store.
func (s *FileStore) Snapshot() Snapshot {
	return Snapshot(s.load().Seen)
}

// MarkSeen implements Store.
func (s *FileStore) MarkSeen(url string, at time.Time) error {
	doc := s.load()
	doc.Seen[url] = at.UnixMilli()
	return s.save(doc)
}

func (s *FileStore) load() seenDocument {
	empty := seenDocument{Seen: map[string]int64{}}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", s.path).Msg("Dedupe state unreadable, treating as empty")
		}
		return empty
	}

	var doc seenDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Dedupe state corrupt, treating as empty")
		return empty
	}
	if doc.Seen == nil {
		return empty
	}
	return doc
}

func (s *FileStore) save(doc seenDocument) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding dedupe state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".seen-*.json")
	if err != nil {
		return fmt.Errorf("writing dedupe state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing dedupe state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing dedupe state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing dedupe state: %w", err)
	}
	return nil
}
