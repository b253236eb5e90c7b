// Package gateway re-publishes snapshots to WebSocket clients.
//
// It is an ordinary observer: browser widgets and status bars connect to
// /ws and receive one JSON message per state change. Slow clients have
// messages dropped rather than ever back-pressuring the publisher.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/davberna/lyricwatch/internal/domain"
	"go.uber.org/zap"
)

const clientQueueCap = 16

// wirePayload is the JSON shape sent to clients
type wirePayload struct {
	Lyrics   string  `json:"lyrics"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	CoverURL string  `json:"cover_url"`
	Duration float64 `json:"duration"`
	Progress float64 `json:"progress"`
}

// Server broadcasts snapshots to connected WebSocket clients
type Server struct {
	logger *zap.Logger
	addr   string

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    []byte // most recent payload, sent to newly connected clients

	srv *http.Server
	wg  sync.WaitGroup
}

type wsClient struct {
	queue chan []byte
}

// NewServer creates a gateway listening on addr once started
func NewServer(logger *zap.Logger, addr string) *Server {
	return &Server{
		logger:  logger,
		addr:    addr,
		clients: make(map[*wsClient]struct{}),
	}
}

// httpHandler routes gateway endpoints; split out so tests can drive the
// handler through httptest without binding a port
func httpHandler(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start begins accepting WebSocket connections. Non-blocking.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.srv = &http.Server{Handler: httpHandler(s)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket gateway failed", zap.Error(err))
		}
	}()

	s.logger.Info("WebSocket gateway listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the listener down and disconnects all clients
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// Addr returns the bound listen address; useful when addr was ":0"
func (s *Server) Addr() string {
	return s.addr
}

// OnSnapshot implements domain.Observer: one JSON message per state change,
// fanned out non-blocking to every connected client.
func (s *Server) OnSnapshot(snap domain.PlaybackSnapshot) {
	data, err := json.Marshal(wirePayload{
		Lyrics:   snap.LyricsText,
		Title:    snap.Title,
		Artist:   snap.Artist,
		CoverURL: snap.CoverRef,
		Duration: snap.DurationSeconds,
		Progress: snap.ProgressSeconds,
	})
	if err != nil {
		s.logger.Error("Failed to encode snapshot", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = data
	for c := range s.clients {
		select {
		case c.queue <- data:
		default:
			// Client not keeping up; the next snapshot supersedes this one
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local tool, any origin is fine
	})
	if err != nil {
		s.logger.Warn("WebSocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := &wsClient{queue: make(chan []byte, clientQueueCap)}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	if s.last != nil {
		client.queue <- s.last
	}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("WebSocket client connected", zap.Int("clients", n))

	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		s.logger.Info("WebSocket client disconnected")
	}()

	// Reads are only consumed to learn about disconnects; clients have
	// nothing to say to us
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-readDone:
			return
		case <-r.Context().Done():
			return
		case data := <-client.queue:
			writeCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
