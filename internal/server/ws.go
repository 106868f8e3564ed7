package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// estimateMessage is the wire format for a live orientation sample.
type estimateMessage struct {
	SessionID   string  `json:"session_id"`
	TimestampMs float64 `json:"timestamp_ms"`
	Angle       float64 `json:"angle"`
	Score       float64 `json:"score"`
	Sent        int64   `json:"sent"`
}

// EstimateHandler broadcasts per-frame club orientation estimates via
// WebSocket. Frames without an estimate are not broadcast: a silent
// stretch on the socket mirrors a gap in the capture.
//
// Broadcasts come from request goroutines, so concurrent sessions can
// push at the same time; gorilla allows only one writer per connection,
// hence the per-connection write mutex.
type EstimateHandler struct {
	clients map[*websocket.Conn]*sync.Mutex
	mu      sync.RWMutex
}

// NewEstimateHandler creates a new EstimateHandler.
func NewEstimateHandler() *EstimateHandler {
	return &EstimateHandler{
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EstimateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// BroadcastEstimate sends one orientation sample to all connected clients.
// Safe for concurrent use: writes to each connection are serialized.
func (h *EstimateHandler) BroadcastEstimate(sessionID string, timestampMs, angle, score float64) {
	h.mu.RLock()
	if len(h.clients) == 0 {
		h.mu.RUnlock()
		return
	}
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, wmu := range h.clients {
		conns[conn] = wmu
	}
	h.mu.RUnlock()

	msg, err := json.Marshal(estimateMessage{
		SessionID:   sessionID,
		TimestampMs: timestampMs,
		Angle:       angle,
		Score:       score,
		Sent:        time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}

	for conn, wmu := range conns {
		wmu.Lock()
		conn.WriteMessage(websocket.TextMessage, msg)
		wmu.Unlock()
	}
}
