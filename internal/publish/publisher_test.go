package publish

import (
	"sync"
	"testing"
	"time"

	"github.com/davberna/lyricwatch/internal/domain"
	"go.uber.org/zap"
)

// recordingObserver collects every snapshot it receives
type recordingObserver struct {
	mu    sync.Mutex
	snaps []domain.PlaybackSnapshot
}

func (r *recordingObserver) OnSnapshot(snap domain.PlaybackSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recordingObserver) last() domain.PlaybackSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return domain.PlaybackSnapshot{}
	}
	return r.snaps[len(r.snaps)-1]
}

// panickingObserver always panics on delivery
type panickingObserver struct{}

func (panickingObserver) OnSnapshot(domain.PlaybackSnapshot) {
	panic("observer failure")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timeout waiting for condition")
}

func TestBroadcast_AllObserversReceive(t *testing.T) {
	pub := NewPublisher(zap.NewNop())
	defer pub.Close()

	obs := []*recordingObserver{{}, {}, {}}
	for _, o := range obs {
		pub.Subscribe(o)
	}

	snap := domain.PlaybackSnapshot{Title: "A", Artist: "B"}
	pub.Broadcast(snap)

	for i, o := range obs {
		o := o
		waitFor(t, func() bool { return o.count() == 1 })
		if got := o.last(); got != snap {
			t.Errorf("observer %d: expected %+v, got %+v", i, snap, got)
		}
	}
}

// TestBroadcast_PanicIsolation verifies that a failing observer does not
// affect the others and stays registered.
func TestBroadcast_PanicIsolation(t *testing.T) {
	pub := NewPublisher(zap.NewNop())
	defer pub.Close()

	first := &recordingObserver{}
	third := &recordingObserver{}
	pub.Subscribe(first)
	pub.Subscribe(panickingObserver{})
	pub.Subscribe(third)

	snap := domain.PlaybackSnapshot{Title: "Song"}
	pub.Broadcast(snap)
	pub.Broadcast(snap)

	waitFor(t, func() bool { return first.count() == 2 && third.count() == 2 })
	if first.last() != snap || third.last() != snap {
		t.Error("healthy observers did not receive the snapshot")
	}
}

func TestBroadcast_InOrderPerObserver(t *testing.T) {
	pub := NewPublisher(zap.NewNop())
	defer pub.Close()

	obs := &recordingObserver{}
	pub.Subscribe(obs)

	for i := 0; i < 5; i++ {
		pub.Broadcast(domain.PlaybackSnapshot{ProgressSeconds: float64(i)})
	}

	waitFor(t, func() bool { return obs.count() == 5 })
	obs.mu.Lock()
	defer obs.mu.Unlock()
	for i, s := range obs.snaps {
		if s.ProgressSeconds != float64(i) {
			t.Fatalf("out of order delivery: position %d got %v", i, s.ProgressSeconds)
		}
	}
}

func TestClose_StopsDelivery(t *testing.T) {
	pub := NewPublisher(zap.NewNop())
	obs := &recordingObserver{}
	pub.Subscribe(obs)

	pub.Broadcast(domain.PlaybackSnapshot{Title: "before"})
	pub.Close()
	pub.Broadcast(domain.PlaybackSnapshot{Title: "after"})

	// Close drains queues, so "before" is guaranteed delivered
	if obs.count() != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", obs.count())
	}
	if obs.last().Title != "before" {
		t.Errorf("unexpected snapshot after close: %+v", obs.last())
	}
}

func TestSubscribe_AfterCloseIgnored(t *testing.T) {
	pub := NewPublisher(zap.NewNop())
	pub.Close()

	obs := &recordingObserver{}
	pub.Subscribe(obs)
	pub.Broadcast(domain.PlaybackSnapshot{Title: "x"})

	time.Sleep(20 * time.Millisecond)
	if obs.count() != 0 {
		t.Error("observer subscribed after Close must not receive snapshots")
	}
}
