package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/events"
)

func dialTestHub(t *testing.T, hub *WSHub) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		server.Close()
		t.Fatalf("Dial failed: %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func waitForClients(t *testing.T, hub *WSHub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Hub never reached %d clients", want)
}

func TestWSHubBroadcastsEvents(t *testing.T) {
	hub := NewWSHub(zerolog.Nop())
	go hub.Run()

	conn, cleanup := dialTestHub(t, hub)
	defer cleanup()

	waitForClients(t, hub, 1)

	hub.HandleEvent(events.Event{Type: events.EventEngineStarted, Timestamp: time.Now()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if !strings.Contains(string(message), string(events.EventEngineStarted)) {
		t.Errorf("Broadcast frame missing event type: %s", message)
	}
}

func TestWSClientReadKeepsDeadlineOnPong(t *testing.T) {
	hub := NewWSHub(zerolog.Nop())
	go hub.Run()

	conn, cleanup := dialTestHub(t, hub)
	defer cleanup()

	waitForClients(t, hub, 1)

	// A ping from the peer must be answered by the server's read loop and the
	// connection must stay registered rather than time out or drop.
	if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("WriteControl failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	hub.mu.RLock()
	n := len(hub.clients)
	hub.mu.RUnlock()
	if n != 1 {
		t.Errorf("Expected the client to stay registered, hub holds %d", n)
	}
}

func TestWSHubUnregistersClosedConnections(t *testing.T) {
	hub := NewWSHub(zerolog.Nop())
	go hub.Run()

	conn, cleanup := dialTestHub(t, hub)
	defer cleanup()

	conn.Close()
	waitForClients(t, hub, 0)
}
