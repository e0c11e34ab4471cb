package feed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/polymarket-mirror/internal/audit"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := NewHub(DefaultConfig(), nil)
	server := httptest.NewServer(h)
	defer server.Close()
	defer h.Close()

	a := dial(t, server)
	defer a.Close()
	b := dial(t, server)
	defer b.Close()
	waitForClients(t, h, 2)

	ev := audit.NewEvent(audit.KindExecuted, time.Now(), model.CopyDecision{SourceTradeID: "t1", MarketID: "m1"})
	ev.OrderID = "o1"
	h.Publish(ev)

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var got audit.Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.ID != ev.ID || got.OrderID != "o1" || got.Kind != audit.KindExecuted {
			t.Errorf("event = %+v, want %+v", got, ev)
		}
	}
}

func TestHub_ClientLeaves(t *testing.T) {
	h := NewHub(DefaultConfig(), nil)
	server := httptest.NewServer(h)
	defer server.Close()
	defer h.Close()

	conn := dial(t, server)
	waitForClients(t, h, 1)

	conn.Close()
	waitForClients(t, h, 0)

	// Publishing with no clients is a no-op.
	h.Publish(audit.NewEvent(audit.KindDecision, time.Now(), model.CopyDecision{}))
}

func TestHub_SlowClientDrops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 1
	h := NewHub(cfg, nil)

	// Registered directly so nothing drains the queue.
	c := &client{send: make(chan []byte, cfg.QueueSize), done: make(chan struct{})}
	if err := h.register(c); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 3; i++ {
		h.Publish(audit.NewEvent(audit.KindDecision, time.Now(), model.CopyDecision{}))
	}
	if got := h.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestHub_CloseRefusesClients(t *testing.T) {
	h := NewHub(DefaultConfig(), nil)
	server := httptest.NewServer(h)
	defer server.Close()

	h.Close()

	conn := dial(t, server)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("read err = %v, want going-away close", err)
	}
	if h.Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", h.Clients())
	}
}
