package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// readRequest reads and decodes one JSON-RPC request from the server side.
func readRequest(t *testing.T, conn *websocket.Conn) (uint64, string, []json.RawMessage) {
	t.Helper()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}

	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(msg, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	return req.ID, req.Method, req.Params
}

func confirmSubscription(t *testing.T, conn *websocket.Conn, reqID uint64, subID int64) {
	t.Helper()

	resp := wsSubscribeResponse{JSONRPC: "2.0", ID: reqID, Result: subID}
	if err := conn.WriteJSON(resp); err != nil {
		t.Fatalf("write confirmation: %v", err)
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func fastConfig() *Config {
	cfg := DefaultConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond
	cfg.SubscribeTimeout = 2 * time.Second
	return &cfg
}

func TestClient_RequiresEndpointAndToken(t *testing.T) {
	if _, err := NewClient(context.Background(), "", "token", nil); err == nil {
		t.Error("expected error for missing endpoint")
	}
	if _, err := NewClient(context.Background(), "ws://localhost:1", "", nil); err == nil {
		t.Error("expected error for missing access token")
	}
}

func TestClient_InitialSubscribeEmptyFilter(t *testing.T) {
	gotFilter := make(chan wsTransactionFilter, 1)
	gotToken := make(chan string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken <- r.URL.Query().Get("api-key")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		reqID, method, params := readRequest(t, conn)
		if method != "transactionSubscribe" {
			t.Errorf("expected transactionSubscribe, got %s", method)
		}

		var filter wsTransactionFilter
		if err := json.Unmarshal(params[0], &filter); err != nil {
			t.Errorf("unmarshal filter: %v", err)
		}
		gotFilter <- filter

		confirmSubscription(t, conn, reqID, 11)

		// Keep connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), "secret", fastConfig())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if token := <-gotToken; token != "secret" {
		t.Errorf("expected api-key=secret, got %q", token)
	}

	select {
	case filter := <-gotFilter:
		if len(filter.AccountInclude) != 0 {
			t.Errorf("expected empty initial filter, got %v", filter.AccountInclude)
		}
		if filter.Failed {
			t.Error("failed transactions must be excluded")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe request received")
	}
}

func TestClient_UpdateFilterResubscribes(t *testing.T) {
	type received struct {
		method string
		filter wsTransactionFilter
		params []json.RawMessage
	}
	requests := make(chan received, 3)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var nextSubID int64 = 1
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req struct {
				ID     uint64            `json:"id"`
				Method string            `json:"method"`
				Params []json.RawMessage `json:"params"`
			}
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("unmarshal: %v", err)
				return
			}

			rec := received{method: req.Method, params: req.Params}
			if req.Method == "transactionSubscribe" {
				json.Unmarshal(req.Params[0], &rec.filter)
				confirmSubscription(t, conn, req.ID, nextSubID)
				nextSubID++
			}
			requests <- rec
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), "secret", fastConfig())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	// Initial empty-filter subscription
	first := <-requests
	if first.method != "transactionSubscribe" || len(first.filter.AccountInclude) != 0 {
		t.Fatalf("unexpected first request: %+v", first)
	}

	client.UpdateFilter([]string{"mintB", "mintA"})

	select {
	case second := <-requests:
		if second.method != "transactionSubscribe" {
			t.Fatalf("expected resubscribe, got %s", second.method)
		}
		// The full set is sent, sorted - never a delta
		if len(second.filter.AccountInclude) != 2 ||
			second.filter.AccountInclude[0] != "mintA" ||
			second.filter.AccountInclude[1] != "mintB" {
			t.Errorf("unexpected filter: %v", second.filter.AccountInclude)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no resubscribe received")
	}

	select {
	case third := <-requests:
		if third.method != "transactionUnsubscribe" {
			t.Fatalf("expected unsubscribe of old subscription, got %s", third.method)
		}
		var oldID int64
		json.Unmarshal(third.params[0], &oldID)
		if oldID != 1 {
			t.Errorf("expected unsubscribe of sub 1, got %d", oldID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no unsubscribe received")
	}
}

func TestClient_NotificationDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		reqID, _, _ := readRequest(t, conn)
		confirmSubscription(t, conn, reqID, 7)

		notif := wsNotification{
			JSONRPC: "2.0",
			Method:  "transactionNotification",
			Params: &wsNotificationParams{
				Subscription: 7,
				Result: wsNotificationResult{
					Context: &wsContext{Slot: 100},
					Value: wsTransactionValue{
						Signature:   "testsig",
						BlockTime:   1700000000000,
						Logs:        []string{"Program log: Instruction: Buy"},
						AccountKeys: []string{"wallet1", "pool1"},
					},
				},
			},
		}
		if err := conn.WriteJSON(notif); err != nil {
			t.Errorf("write notification: %v", err)
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), "secret", fastConfig())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	select {
	case n := <-client.Notifications():
		if n.Signature != "testsig" {
			t.Errorf("unexpected signature: %s", n.Signature)
		}
		if n.Slot != 100 {
			t.Errorf("unexpected slot: %d", n.Slot)
		}
		if n.BlockTimeMs != 1700000000000 {
			t.Errorf("unexpected blockTime: %d", n.BlockTimeMs)
		}
		if len(n.Logs) != 1 || len(n.AccountKeys) != 2 {
			t.Errorf("unexpected payload: logs=%v keys=%v", n.Logs, n.AccountKeys)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestClient_ReconnectResubscribesWithResumeSlot(t *testing.T) {
	subscribes := make(chan wsSubscribeOptions, 2)
	connCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCount++
		isFirst := connCount == 1

		reqID, _, params := readRequest(t, conn)
		var opts wsSubscribeOptions
		json.Unmarshal(params[1], &opts)
		subscribes <- opts

		confirmSubscription(t, conn, reqID, int64(connCount))

		if isFirst {
			// Deliver one notification so the client learns a slot, then
			// drop the connection to force a reconnect
			notif := wsNotification{
				JSONRPC: "2.0",
				Method:  "transactionNotification",
				Params: &wsNotificationParams{
					Subscription: 1,
					Result: wsNotificationResult{
						Context: &wsContext{Slot: 250},
						Value:   wsTransactionValue{Signature: "sig1"},
					},
				},
			}
			conn.WriteJSON(notif)
			time.Sleep(50 * time.Millisecond)
			conn.Close()
			return
		}

		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), "secret", fastConfig())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	first := <-subscribes
	if first.FromSlot != 0 {
		t.Errorf("initial subscribe must not carry a resume slot, got %d", first.FromSlot)
	}

	// Drain the notification so slot 250 is recorded
	select {
	case <-client.Notifications():
	case <-time.After(2 * time.Second):
		t.Fatal("no notification before disconnect")
	}

	select {
	case second := <-subscribes:
		if second.FromSlot != 250 {
			t.Errorf("expected resume from slot 250, got %d", second.FromSlot)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no resubscribe after reconnect")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		reqID, _, _ := readRequest(t, conn)
		confirmSubscription(t, conn, reqID, 1)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), "secret", fastConfig())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	// Notification channel is closed after shutdown
	if _, ok := <-client.Notifications(); ok {
		t.Error("expected closed notification channel")
	}
}
