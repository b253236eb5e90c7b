// Package cover resolves a snapshot's cover reference into image data.
//
// The stream carries covers in two shapes: a data URI with the image bytes
// embedded, or an http(s) URL pointing at the player's artwork cache. The
// resolver handles both and tracks a per-reference attempt budget so a dead
// URL is not hammered forever.
package cover

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF format support
	_ "image/jpeg" // JPEG format support
	_ "image/png"  // PNG format support
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const _maxImageSize = 10 * 1024 * 1024 // 10 MB

var (
	// ErrNoCover is returned for an empty cover reference
	ErrNoCover = errors.New("no cover reference")
	// ErrAttemptsExhausted is returned once a reference has failed its
	// whole attempt budget; the resolver then gives up silently until the
	// reference changes
	ErrAttemptsExhausted = errors.New("cover fetch attempts exhausted")
)

// Resolver fetches cover image data with a bounded retry budget
type Resolver struct {
	logger      *zap.Logger
	client      *http.Client
	maxAttempts int

	mu       sync.Mutex
	ref      string
	attempts int
}

// NewResolver creates a resolver. timeout bounds each remote fetch;
// maxAttempts caps how many times the same failing reference is retried.
// The attempt counter resets whenever the reference changes.
func NewResolver(logger *zap.Logger, timeout time.Duration, maxAttempts int) *Resolver {
	return &Resolver{
		logger:      logger,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
	}
}

// Fetch resolves ref into raw image bytes
func (r *Resolver) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, ErrNoCover
	}

	if err := r.takeAttempt(ref); err != nil {
		return nil, err
	}

	var data []byte
	var err error
	switch {
	case strings.HasPrefix(ref, "data:image/"):
		data, err = decodeDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		data, err = r.fetchRemote(ctx, ref)
	default:
		err = fmt.Errorf("unsupported cover reference scheme")
	}

	if err != nil {
		r.logger.Warn("Cover fetch failed",
			zap.String("ref", truncateRef(ref)),
			zap.Int("attempt", r.currentAttempt()),
			zap.Error(err))
		return nil, err
	}

	r.resetAttempts()
	r.logger.Debug("Cover fetched", zap.Int("bytes", len(data)))
	return data, nil
}

// Thumbnail scales and center-crops the image into a size x size square,
// encoded as JPEG.
func Thumbnail(data []byte, size int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode cover: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("invalid cover dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	thumb := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, thumb, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// takeAttempt consumes one attempt for ref, resetting the budget when the
// reference changed since the last call.
func (r *Resolver) takeAttempt(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ref != r.ref {
		r.ref = ref
		r.attempts = 0
	}
	if r.attempts >= r.maxAttempts {
		return ErrAttemptsExhausted
	}
	r.attempts++
	return nil
}

func (r *Resolver) resetAttempts() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = 0
}

func (r *Resolver) currentAttempt() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// decodeDataURI extracts the base64 payload of a data:image/...;base64,<payload> URI
func decodeDataURI(ref string) ([]byte, error) {
	_, encoded, ok := strings.Cut(ref, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode data URI: %w", err)
	}
	return data, nil
}

func (r *Resolver) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "lyricwatch/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return nil, fmt.Errorf("url is not an image: %s", resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, _maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// truncateRef keeps data URIs from flooding the log
func truncateRef(ref string) string {
	const max = 64
	if len(ref) <= max {
		return ref
	}
	return ref[:max] + "..."
}
