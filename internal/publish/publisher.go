// Package publish fans snapshots out to registered observers.
package publish

import (
	"sync"
	"time"

	"github.com/davberna/lyricwatch/internal/domain"
	"go.uber.org/zap"
)

const subscriberQueueCap = 16

// Publisher is a thread-safe callback registry. Each observer gets its own
// dispatch goroutine fed by a buffered queue, so the ingestion path is never
// blocked by a slow observer: when a queue is full the snapshot is dropped
// for that observer and the next broadcast supersedes it anyway, since every
// snapshot carries the full consolidated state.
type Publisher struct {
	logger *zap.Logger

	mu              sync.Mutex
	subs            []*subscriber
	closed          bool
	lastDropWarning time.Time

	wg sync.WaitGroup
}

type subscriber struct {
	obs   domain.Observer
	queue chan domain.PlaybackSnapshot
}

// NewPublisher creates a publisher with no observers
func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logger}
}

// Subscribe registers an observer and starts its dispatch goroutine.
// Observers registered after Close are ignored.
func (p *Publisher) Subscribe(obs domain.Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Warn("Subscribe after Close, observer ignored")
		return
	}

	sub := &subscriber{
		obs:   obs,
		queue: make(chan domain.PlaybackSnapshot, subscriberQueueCap),
	}
	p.subs = append(p.subs, sub)

	p.wg.Add(1)
	go p.dispatch(sub)
}

// Broadcast delivers the snapshot to every observer in registration order.
// The send into each queue is non-blocking; a full queue drops the snapshot
// for that observer with a rate-limited warning.
func (p *Publisher) Broadcast(snap domain.PlaybackSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	for _, sub := range p.subs {
		select {
		case sub.queue <- snap:
		default:
			p.logDropWarningLocked()
		}
	}
}

// Close stops all dispatch goroutines and waits for queued snapshots to
// drain. Further broadcasts are no-ops.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, sub := range p.subs {
		close(sub.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debug("Publisher closed")
}

// dispatch drains one observer's queue. A panicking observer is logged and
// skipped; it stays subscribed and other observers are unaffected.
func (p *Publisher) dispatch(sub *subscriber) {
	defer p.wg.Done()
	for snap := range sub.queue {
		p.deliver(sub, snap)
	}
}

func (p *Publisher) deliver(sub *subscriber, snap domain.PlaybackSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Observer panicked on snapshot delivery",
				zap.Any("panic", r),
				zap.String("title", snap.Title))
		}
	}()
	sub.obs.OnSnapshot(snap)
}

// logDropWarningLocked rate-limits the queue-full warning so rapid progress
// events cannot spam the log. Caller must hold p.mu.
func (p *Publisher) logDropWarningLocked() {
	const warningInterval = 5 * time.Second
	now := time.Now()
	if now.Sub(p.lastDropWarning) >= warningInterval {
		p.logger.Warn("Observer queue full, dropping snapshot (observer may be slow)")
		p.lastDropWarning = now
	}
}
