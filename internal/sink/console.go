// Package sink provides the built-in snapshot observers.
package sink

import (
	"github.com/davberna/lyricwatch/internal/domain"
	"go.uber.org/zap"
)

// Console logs each snapshot's headline fields. It stands in for a real
// renderer and doubles as a liveness signal when running the daemon by hand.
type Console struct {
	logger *zap.Logger
}

// NewConsole creates a console sink
func NewConsole(logger *zap.Logger) *Console {
	return &Console{logger: logger}
}

// OnSnapshot implements domain.Observer
func (c *Console) OnSnapshot(snap domain.PlaybackSnapshot) {
	c.logger.Info("Now playing",
		zap.String("title", snap.Title),
		zap.String("artist", snap.Artist),
		zap.String("line", snap.CurrentLine()),
		zap.Float64("progress", snap.ProgressSeconds),
		zap.Float64("duration", snap.DurationSeconds))
}
