// Package stream owns the long-lived connection to the music player's event
// stream: connection lifecycle, event framing, reconnection and snapshot
// publication.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/davberna/lyricwatch/internal/domain"
	"github.com/davberna/lyricwatch/internal/sse"
	"github.com/davberna/lyricwatch/internal/state"
	"go.uber.org/zap"
)

// Client drives the read loop against the player's SSE endpoint. It is the
// only writer to its Store; every applied event is followed by a broadcast
// of the new snapshot.
//
// Lifecycle: Idle -> Connecting -> Streaming -> Reconnecting -> Connecting
// ... until Stop, which is terminal. Transport failures are never fatal: the
// client retries every RetryDelay indefinitely, since the player may simply
// not be running yet.
type Client struct {
	logger *zap.Logger
	cfg    domain.Config
	store  *state.Store
	pub    domain.Publisher
	doer   Doer

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	connState domain.ConnectionState

	wg sync.WaitGroup
}

// NewClient creates a stream client. The store and publisher are owned by
// the caller and injected, so independent clients (and tests) never share
// state.
func NewClient(logger *zap.Logger, cfg domain.Config, store *state.Store, pub domain.Publisher) *Client {
	return &Client{
		logger:    logger,
		cfg:       cfg,
		store:     store,
		pub:       pub,
		doer:      NewStreamHTTPClient(),
		connState: domain.StateIdle,
	}
}

// SetDoer replaces the HTTP transport; used by tests
func (c *Client) SetDoer(d Doer) {
	c.doer = d
}

// Start launches the read loop in a goroutine and returns immediately.
// Calling Start on a running client is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info("Stream client started", zap.String("url", c.cfg.StreamURL()))

	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

// Stop aborts any blocked read or pending retry and waits for the read loop
// to exit. After Stop returns, no further snapshots are published.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.setState(domain.StateStopped)
	c.logger.Info("Stream client stopped")
	return nil
}

// State returns the current connection lifecycle state
func (c *Client) State() domain.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connState
}

// run is the reconnect loop: one streamOnce per connection, a fixed
// cancelable delay between attempts.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		c.setState(domain.StateConnecting)
		err := c.streamOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		c.logger.Error("Stream connection lost", zap.Error(err))

		if c.cfg.ClearOnDisconnect() {
			// Publish the sentinel snapshot before the delayed retry so
			// observers can show a disconnected state instead of stale data
			c.pub.Broadcast(c.store.Clear())
		}

		c.setState(domain.StateReconnecting)
		timer := time.NewTimer(c.cfg.RetryDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// streamOnce opens one connection and reads it until it fails. A clean EOF
// is still an error from the caller's perspective: the stream is supposed to
// be endless.
func (c *Client) streamOnce(ctx context.Context) error {
	req, err := c.buildRequest(ctx)
	if err != nil {
		return err
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	c.setState(domain.StateStreaming)
	c.logger.Info("Subscribed to player event stream")

	// Accumulate lines into a block; a blank line flushes it. The request
	// context makes the blocked Scan abort promptly on Stop.
	scanner := bufio.NewScanner(resp.Body)
	var block []string
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			block = append(block, line)
			continue
		}
		if len(block) > 0 {
			c.dispatch(block)
			block = nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return fmt.Errorf("stream ended")
}

// dispatch parses one event block, applies it to the store and publishes the
// resulting snapshot. Empty records and unmapped event types are no-ops.
func (c *Client) dispatch(block []string) {
	rec := sse.ParseBlock(block)
	if rec.IsZero() {
		return
	}
	if !c.store.Apply(rec.Type, rec.Data) {
		c.logger.Debug("Ignoring unmapped event type", zap.String("event", rec.Type))
		return
	}
	c.pub.Broadcast(c.store.Snapshot())
}

// buildRequest asks the server for a continuous text event stream filtered
// down to the fields the store consumes. The filter is a server-side
// subscription hint; extra event types are still tolerated and ignored.
func (c *Client) buildRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.StreamURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q := url.Values{}
	q.Set("filter", strings.Join(c.cfg.FilterFields(), ","))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	return req, nil
}

func (c *Client) setState(s domain.ConnectionState) {
	c.mu.Lock()
	prev := c.connState
	c.connState = s
	c.mu.Unlock()

	if prev != s {
		c.logger.Debug("Connection state changed",
			zap.String("from", string(prev)),
			zap.String("to", string(s)))
	}
}
