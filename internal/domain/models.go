package domain

import "strings"

// Sentinel values used after the stream connection is lost, before the
// player has reported anything.
const (
	// UnknownTitle is shown while no track name has been received
	UnknownTitle = "Unknown Track"
	// UnknownArtist is shown while no artist name has been received
	UnknownArtist = "Unknown Artist"
	// WaitingLyric is shown while no lyric line has been received
	WaitingLyric = "Waiting for player data..."
)

// ConnectionState describes where the stream client is in its lifecycle
type ConnectionState string

const (
	// StateIdle means the client has been created but not started
	StateIdle ConnectionState = "Idle"
	// StateConnecting means a connection attempt is in flight
	StateConnecting ConnectionState = "Connecting"
	// StateStreaming means events are being read from the player
	StateStreaming ConnectionState = "Streaming"
	// StateReconnecting means the client is waiting out the retry delay
	StateReconnecting ConnectionState = "Reconnecting"
	// StateStopped is terminal; only an explicit Stop reaches it
	StateStopped ConnectionState = "Stopped"
)

// PlaybackSnapshot is the consolidated now-playing state at one point in
// time. It is a plain value: every read gets its own copy, so observers may
// hold on to it without synchronization.
//
// State accumulates per field across the stream's lifetime: a field keeps
// its last reported value until the player sends a newer one.
type PlaybackSnapshot struct {
	// LyricsText is the raw multi-line lyric payload. The first line is the
	// line currently being sung, the remainder is upcoming context.
	LyricsText string
	// Title of the currently playing track
	Title string
	// Artist name
	Artist string
	// CoverRef is either a data:image/... URI, an http(s) URL, or empty
	// when the track has no cover
	CoverRef string
	// DurationSeconds is the track length, 0 when unknown
	DurationSeconds float64
	// ProgressSeconds is the playback position, 0 when unknown
	ProgressSeconds float64
}

// CurrentLine returns the lyric line currently being sung, or empty when no
// lyrics have been received.
func (s PlaybackSnapshot) CurrentLine() string {
	line, _, _ := strings.Cut(s.LyricsText, "\n")
	return strings.TrimSpace(line)
}

// UpcomingLines returns the lyric context after the current line, or empty.
func (s PlaybackSnapshot) UpcomingLines() string {
	_, rest, ok := strings.Cut(s.LyricsText, "\n")
	if !ok {
		return ""
	}
	return strings.TrimSpace(rest)
}

// HasCover reports whether the snapshot carries a cover reference.
func (s PlaybackSnapshot) HasCover() bool {
	return s.CoverRef != ""
}

// Cleared returns the snapshot published when the player connection is lost:
// sentinel title/artist/lyric, no cover, zeroed progress.
func Cleared() PlaybackSnapshot {
	return PlaybackSnapshot{
		LyricsText: WaitingLyric,
		Title:      UnknownTitle,
		Artist:     UnknownArtist,
	}
}
