package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/retailcore/commerce_layer/internal/app/domain/pos"
)

func dial(t *testing.T, hub *Hub, companyID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Subscribe(w, r, companyID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscriber(t *testing.T, hub *Hub, companyID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(companyID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers for %s, got %d", want, companyID, hub.SubscriberCount(companyID))
}

func TestBroadcastIsCompanyScoped(t *testing.T) {
	hub := NewHub(nil)

	connA := dial(t, hub, "co1")
	connB := dial(t, hub, "co2")
	waitForSubscriber(t, hub, "co1", 1)
	waitForSubscriber(t, hub, "co2", 1)

	hub.SaleCompleted("co1", pos.Sale{ID: "sale1", TotalCents: 1250})

	_ = connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := connA.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event struct {
		Type    string   `json:"type"`
		Payload pos.Sale `json:"payload"`
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Type != "sale.completed" || event.Payload.ID != "sale1" {
		t.Fatalf("unexpected event: %+v", event)
	}

	// The other tenant must not receive anything.
	_ = connB.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := connB.ReadMessage(); err == nil {
		t.Fatal("expected no event for foreign company")
	}
}

func TestDisconnectRemovesSubscriber(t *testing.T) {
	hub := NewHub(nil)

	conn := dial(t, hub, "co1")
	waitForSubscriber(t, hub, "co1", 1)

	conn.Close()
	waitForSubscriber(t, hub, "co1", 0)
}
