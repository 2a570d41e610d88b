package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/engine"
)

const (
	maxStreamConns = 32
	streamBuffer   = 4
	writeWait      = 5 * time.Second
	readWait       = 60 * time.Second
)

// Frame is one pose broadcast to stream clients.
type Frame struct {
	Tick    uint64        `json:"tick"`
	SimTime string        `json:"sim_time"`
	Poses   []agents.Pose `json:"poses"`
}

// Hub fans pose frames out to websocket clients. Broadcast never blocks:
// a client whose buffer is full misses the frame.
type Hub struct {
	mu      sync.Mutex
	clients map[uint64]chan []byte
	nextID  atomic.Uint64
	dropped atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[uint64]chan []byte)}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many frames were skipped for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) join() (uint64, chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxStreamConns {
		return 0, nil, false
	}
	id := h.nextID.Add(1)
	ch := make(chan []byte, streamBuffer)
	h.clients[id] = ch
	return id, ch, true
}

func (h *Hub) leave(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
	}
}

// Broadcast sends b to every client that has room for it.
func (h *Hub) Broadcast(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// Publish encodes the current poses and broadcasts them. Nothing is
// encoded while no client is connected.
func (s *Server) Publish(tick uint64) {
	if s.hub == nil || s.hub.Clients() == 0 {
		return
	}
	b, err := json.Marshal(Frame{Tick: tick, SimTime: engine.SimTime(tick), Poses: s.Sim.Poses()})
	if err != nil {
		slog.Warn("pose frame encode failed", "tick", tick, "error", err)
		return
	}
	s.hub.Broadcast(b)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, out, ok := s.hub.join()
	if !ok {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.leave(id)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	slog.Info("stream client connected", "client", id, "remote", clientIP(r))

	// Writer goroutine.
	done := make(chan struct{})
	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-done:
				writeErr <- nil
				return
			case b, ok := <-out:
				if !ok {
					writeErr <- nil
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	// Reader loop: clients send nothing, reads only notice the close.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
	slog.Info("stream client disconnected", "client", id)
}
