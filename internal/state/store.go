// Package state holds the consolidated now-playing snapshot.
package state

import (
	"strconv"
	"sync"

	"github.com/davberna/lyricwatch/internal/domain"
	"go.uber.org/zap"
)

// Event types recognized by the store. Anything else is ignored.
const (
	EventLyrics   = "lyricLineAllText"
	EventTitle    = "name"
	EventArtist   = "singer"
	EventCover    = "picUrl"
	EventDuration = "duration"
	EventProgress = "progress"
)

// Store accumulates per-field playback state. It has exactly one writer (the
// stream client's read loop) but any number of concurrent readers, so all
// access goes through a read-write mutex and Snapshot copies the whole value
// under it.
type Store struct {
	logger *zap.Logger
	mu     sync.RWMutex
	snap   domain.PlaybackSnapshot
}

// NewStore creates a store with all fields zero/empty
func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger}
}

// Apply updates the single field mapped to eventType and reports whether a
// mapped field was touched. Unknown event types are ignored and return false.
//
// Numeric payloads that fail to parse are coerced to 0 with a warning; the
// stream is never aborted over a malformed payload.
func (s *Store) Apply(eventType, payload string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch eventType {
	case EventLyrics:
		s.snap.LyricsText = payload
	case EventTitle:
		s.snap.Title = payload
	case EventArtist:
		s.snap.Artist = payload
	case EventCover:
		s.snap.CoverRef = payload
	case EventDuration:
		s.snap.DurationSeconds = s.parseSeconds(eventType, payload)
	case EventProgress:
		s.snap.ProgressSeconds = s.parseSeconds(eventType, payload)
	default:
		return false
	}
	return true
}

// Snapshot returns a copy of the current state, safe to call concurrently
// with Apply.
func (s *Store) Snapshot() domain.PlaybackSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Clear resets the store to the disconnected sentinels and returns the
// resulting snapshot.
func (s *Store) Clear() domain.PlaybackSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = domain.Cleared()
	return s.snap
}

// parseSeconds coerces a payload into a non-negative float. Empty payloads
// mean "not reported" and map to 0 without a warning.
func (s *Store) parseSeconds(eventType, payload string) float64 {
	if payload == "" {
		return 0
	}
	v, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		s.logger.Warn("Malformed numeric payload, coercing to 0",
			zap.String("event", eventType),
			zap.String("payload", payload))
		return 0
	}
	if v < 0 {
		return 0
	}
	return v
}
