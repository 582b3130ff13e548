// Package gateway fans delivered signal records out to WebSocket
// subscribers on /ws/signals. It is a read-only consumer of the monitor:
// clients see what was delivered, never what was suppressed. New clients
// receive a replay of the most recent records before live traffic.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signal-botv1/internal/model"
)

const defaultReplaySize = 50

// Envelope is the wire format for one delivered signal.
type Envelope struct {
	Type   string  `json:"type"`
	Seq    int64   `json:"seq"`
	Ticker string  `json:"ticker"`
	Signal string  `json:"signal"`
	Price  float64 `json:"price"`
	RPP    float64 `json:"rpp"`
	TS     string  `json:"ts"`
	Replay bool    `json:"replay,omitempty"`
}

// Hub manages WebSocket clients and the replay ring. It implements
// monitor.Feed and http.Handler.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool
	recent  []Envelope // ring, oldest first
	seq     int64

	replaySize int

	// OnClientCount, when set, is called with the connection count after
	// every register/unregister. Used to drive the ws clients gauge.
	OnClientCount func(n int)
}

// NewHub creates a Hub keeping replaySize records for new-client replay.
// replaySize <= 0 uses the default.
func NewHub(replaySize int) *Hub {
	if replaySize <= 0 {
		replaySize = defaultReplaySize
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:    make(map[*client]bool),
		replaySize: replaySize,
	}
}

// Publish broadcasts one delivered record to every connected client and
// appends it to the replay ring. Slow clients are skipped, not blocked on.
func (h *Hub) Publish(rec model.SignalRecord) {
	h.mu.Lock()
	h.seq++
	env := Envelope{
		Type:   "signal",
		Seq:    h.seq,
		Ticker: rec.Ticker,
		Signal: string(rec.Signal),
		Price:  rec.Price,
		RPP:    rec.RPPScore,
		TS:     rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	h.recent = append(h.recent, env)
	if len(h.recent) > h.replaySize {
		h.recent = h.recent[len(h.recent)-h.replaySize:]
	}

	msg, err := json.Marshal(env)
	if err != nil {
		h.mu.Unlock()
		return
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Client's buffer is full; it will catch up or time out.
		}
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades the connection and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	replay := make([]Envelope, len(h.recent))
	copy(replay, h.recent)
	h.mu.Unlock()

	h.notifyCount(count)
	slog.Info("ws client connected", slog.Int("total", count))

	c.queueReplay(replay)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	h.notifyCount(count)
	slog.Info("ws client disconnected", slog.Int("total", count))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) notifyCount(n int) {
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}
}
