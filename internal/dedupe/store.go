// Package dedupe remembers which item URLs were already forwarded and when.
package dedupe

import "time"

const msPerDay = int64(24 * time.Hour / time.Millisecond)

// Snapshot maps an item URL to the unix-millisecond time it was last marked seen.
type Snapshot map[string]int64

// IsSeen reports whether url was marked within windowDays of now.
func (s Snapshot) IsSeen(url string, windowDays int, now time.Time) bool {
	ts, ok := s[url]
	if !ok || ts == 0 {
		return false
	}
	return now.UnixMilli()-ts < int64(windowDays)*msPerDay
}

// Store is a durable url -> last-seen mapping. Writes are last-write-wins.
// Implementations assume a single writer process.
type Store interface {
	// Snapshot reads the whole store. Read failures yield an empty snapshot.
	Snapshot() Snapshot
	// MarkSeen records url as seen at the given time and persists it.
	MarkSeen(url string, at time.Time) error
}

// IsSeen loads a fresh snapshot from store and checks url against it.
func IsSeen(store Store, url string, windowDays int, now time.Time) bool {
	return store.Snapshot().IsSeen(url, windowDays, now)
}
