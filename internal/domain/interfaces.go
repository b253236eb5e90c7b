package domain

import (
	"context"
	"time"
)

// Observer receives every published snapshot. Implementations run on the
// publisher's dispatch goroutine, never on the network read loop, so a slow
// observer cannot stall ingestion.
type Observer interface {
	// OnSnapshot is called once per state change, in publication order
	OnSnapshot(snap PlaybackSnapshot)
}

// Publisher fans snapshots out to registered observers
type Publisher interface {
	// Subscribe registers an observer; delivery follows registration order
	Subscribe(obs Observer)

	// Broadcast delivers the snapshot to every current observer.
	// It never blocks on a slow observer.
	Broadcast(snap PlaybackSnapshot)

	// Close stops all dispatch goroutines and waits for them to drain
	Close()
}

// StreamClient owns the connection to the player's event stream
type StreamClient interface {
	// Start launches the read loop. It returns immediately (non-blocking).
	Start(ctx context.Context) error

	// Stop aborts any pending read or scheduled retry and waits for the
	// read loop to exit
	Stop(ctx context.Context) error

	// State returns the current connection lifecycle state
	State() ConnectionState
}

// CoverFetcher resolves a snapshot's cover reference into raw image bytes.
// Implementations handle both data-URI embedded images and remote URLs.
type CoverFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Config defines the application configuration surface
type Config interface {
	// StreamURL returns the base URL of the player's event stream
	StreamURL() string

	// FilterFields returns the event types requested from the server
	FilterFields() []string

	// RetryDelay returns the fixed pause between a failed connection and
	// the next attempt
	RetryDelay() time.Duration

	// ClearOnDisconnect reports whether a sentinel snapshot is published
	// when the connection drops
	ClearOnDisconnect() bool

	// CoverSize returns the square thumbnail edge in pixels
	CoverSize() int

	// CoverTimeout returns the per-request timeout for remote cover fetches
	CoverTimeout() time.Duration

	// CoverMaxAttempts returns how many times a failing cover reference is
	// retried before giving up
	CoverMaxAttempts() int

	// CoverOutputDir returns the directory the current cover thumbnail is
	// written to
	CoverOutputDir() string

	// WebSocketAddr returns the listen address for the snapshot gateway,
	// empty when the gateway is disabled
	WebSocketAddr() string
}
