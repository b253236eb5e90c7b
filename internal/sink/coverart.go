package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/davberna/lyricwatch/internal/cover"
	"github.com/davberna/lyricwatch/internal/domain"
	"go.uber.org/zap"
)

const coverFilename = "current_cover.jpg"

// CoverArt keeps a thumbnail of the current track's cover on disk, where
// widgets and status bars can pick it up. It only reacts when the cover
// reference actually changes; progress events pass through untouched.
//
// OnSnapshot runs on the publisher's dispatch goroutine, so the fetch is
// allowed to block without stalling ingestion.
type CoverArt struct {
	logger  *zap.Logger
	fetcher domain.CoverFetcher
	size    int
	outDir  string

	lastRef string
}

// NewCoverArt creates a cover-art sink writing size x size thumbnails into outDir
func NewCoverArt(logger *zap.Logger, fetcher domain.CoverFetcher, size int, outDir string) *CoverArt {
	return &CoverArt{
		logger:  logger,
		fetcher: fetcher,
		size:    size,
		outDir:  outDir,
	}
}

// OnSnapshot implements domain.Observer
func (c *CoverArt) OnSnapshot(snap domain.PlaybackSnapshot) {
	if snap.CoverRef == c.lastRef {
		return
	}
	c.lastRef = snap.CoverRef

	if !snap.HasCover() {
		c.remove()
		return
	}

	data, err := c.fetcher.Fetch(context.Background(), snap.CoverRef)
	if err != nil {
		if !errors.Is(err, cover.ErrAttemptsExhausted) {
			c.logger.Warn("Cover unavailable", zap.Error(err))
		}
		c.remove()
		return
	}

	thumb, err := cover.Thumbnail(data, c.size)
	if err != nil {
		c.logger.Warn("Cover thumbnail failed", zap.Error(err))
		c.remove()
		return
	}

	if err := c.write(thumb); err != nil {
		c.logger.Error("Failed to write cover thumbnail", zap.Error(err))
		return
	}
	c.logger.Debug("Cover thumbnail updated",
		zap.String("title", snap.Title),
		zap.Int("bytes", len(thumb)))
}

// Path returns where the current thumbnail lives
func (c *CoverArt) Path() string {
	return filepath.Join(c.outDir, coverFilename)
}

func (c *CoverArt) write(data []byte) error {
	if err := os.MkdirAll(c.outDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(c.Path(), data, 0644)
}

// remove clears the on-disk thumbnail so consumers do not show a stale cover
func (c *CoverArt) remove() {
	if err := os.Remove(c.Path()); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to remove stale cover", zap.Error(err))
	}
}
