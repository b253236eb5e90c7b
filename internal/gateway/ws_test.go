package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/davberna/lyricwatch/internal/domain"
	"go.uber.org/zap"
)

func dialTestServer(t *testing.T, s *Server) (*websocket.Conn, func()) {
	t.Helper()

	// Exercise the handler directly through httptest to avoid binding a
	// real port in unit tests
	ts := httptest.NewServer(httpHandler(s))
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		cancel()
		ts.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		cancel()
		ts.Close()
	}
}

func readPayload(t *testing.T, conn *websocket.Conn) wirePayload {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var p wirePayload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return p
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		got := len(s.clients)
		s.mu.Unlock()
		if got == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d clients", n)
}

func TestServer_BroadcastsSnapshots(t *testing.T) {
	s := NewServer(zap.NewNop(), "127.0.0.1:0")
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	waitForClients(t, s, 1)

	s.OnSnapshot(domain.PlaybackSnapshot{
		LyricsText:      "line one\nline two",
		Title:           "A",
		Artist:          "B",
		CoverRef:        "https://example.com/c.jpg",
		DurationSeconds: 120,
		ProgressSeconds: 30,
	})

	p := readPayload(t, conn)
	if p.Title != "A" || p.Artist != "B" {
		t.Errorf("unexpected payload: %+v", p)
	}
	if p.Lyrics != "line one\nline two" {
		t.Errorf("unexpected lyrics: %q", p.Lyrics)
	}
	if p.CoverURL != "https://example.com/c.jpg" || p.Duration != 120 || p.Progress != 30 {
		t.Errorf("unexpected payload: %+v", p)
	}
}

// TestServer_LateJoinerGetsCurrentState verifies that a client connecting
// after playback started immediately receives the latest snapshot instead
// of waiting for the next change.
func TestServer_LateJoinerGetsCurrentState(t *testing.T) {
	s := NewServer(zap.NewNop(), "127.0.0.1:0")
	s.OnSnapshot(domain.PlaybackSnapshot{Title: "Already Playing"})

	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	p := readPayload(t, conn)
	if p.Title != "Already Playing" {
		t.Errorf("late joiner did not get current state: %+v", p)
	}
}

func TestServer_MultipleClients(t *testing.T) {
	s := NewServer(zap.NewNop(), "127.0.0.1:0")

	conn1, cleanup1 := dialTestServer(t, s)
	defer cleanup1()
	conn2, cleanup2 := dialTestServer(t, s)
	defer cleanup2()

	waitForClients(t, s, 2)

	s.OnSnapshot(domain.PlaybackSnapshot{Title: "Both"})

	if p := readPayload(t, conn1); p.Title != "Both" {
		t.Errorf("client 1 missed broadcast: %+v", p)
	}
	if p := readPayload(t, conn2); p.Title != "Both" {
		t.Errorf("client 2 missed broadcast: %+v", p)
	}
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(zap.NewNop(), "127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
