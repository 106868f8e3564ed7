package server

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialEstimateStream connects a websocket client to the handler and waits
// for the server side to register it.
func dialEstimateStream(t *testing.T, h *EstimateHandler) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})

	// Registration happens in the server goroutine after the upgrade.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.RLock()
		registered := len(h.clients)
		h.mu.RUnlock()
		if registered > 0 {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("client never registered")
	return nil
}

func TestEstimateHandler_BroadcastReachesClient(t *testing.T) {
	h := NewEstimateHandler()
	conn := dialEstimateStream(t, h)

	h.BroadcastEstimate("session-1", 33.3, 45.0, 0.9)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg estimateMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}

	if msg.SessionID != "session-1" {
		t.Errorf("SessionID mismatch: got %q, want %q", msg.SessionID, "session-1")
	}
	if msg.Angle != 45.0 {
		t.Errorf("Angle mismatch: got %f, want 45.0", msg.Angle)
	}
	if msg.Score != 0.9 {
		t.Errorf("Score mismatch: got %f, want 0.9", msg.Score)
	}
}

func TestEstimateHandler_ConcurrentBroadcasts(t *testing.T) {
	h := NewEstimateHandler()
	conn := dialEstimateStream(t, h)

	const broadcasters = 8
	const perBroadcaster = 20
	total := broadcasters * perBroadcaster

	// Drain on the client side while the broadcasters run, so writes
	// never back up.
	received := make(chan struct{})
	go func() {
		defer close(received)
		for i := 0; i < total; i++ {
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				t.Errorf("read %d failed: %v", i, err)
				return
			}
		}
	}()

	// Concurrent sessions pushing estimates must not interleave writes on
	// a single connection.
	var wg sync.WaitGroup
	for b := 0; b < broadcasters; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			for i := 0; i < perBroadcaster; i++ {
				h.BroadcastEstimate("session", float64(i)*33.3, float64(b), 0.9)
			}
		}(b)
	}
	wg.Wait()

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for broadcasts")
	}
}
