// Package stream maintains the multiplexed transaction subscription used by
// the session registry. One logical subscription exists per client; its
// filter is replaced wholesale whenever the watched token set changes.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-wallet-monitor/internal/observability"
)

// Config configures stream client behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout is how long to wait for a subscription confirmation.
	SubscribeTimeout time.Duration
	// MaxResumeRetries is the number of consecutive failed reconnect
	// attempts after which the resume-from-slot hint is dropped and the
	// subscription restarts from latest.
	MaxResumeRetries int
}

// DefaultConfig returns default stream configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		MaxResumeRetries:  5,
	}
}

// Client is a gorilla/websocket JSON-RPC client holding one
// transactionSubscribe subscription.
type Client struct {
	endpoint string
	config   Config

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// filterTokens is the desired accountInclude set; subID is the
	// currently confirmed subscription
	filterTokens []string
	subID        int64
	filterMu     sync.Mutex
	filterCh     chan struct{}

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	notifications chan TransactionNotification

	lastSlot   atomic.Int64
	retryCount atomic.Int32

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewClient creates a stream client and connects to the endpoint.
// Both the endpoint and the access token are required.
func NewClient(ctx context.Context, endpoint, accessToken string, config *Config) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("stream endpoint is required")
	}
	if accessToken == "" {
		return nil, fmt.Errorf("stream access token is required")
	}

	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse stream endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api-key", accessToken)
	u.RawQuery = q.Encode()

	c := &Client{
		endpoint:      u.String(),
		config:        cfg,
		filterCh:      make(chan struct{}, 1),
		pendingSubs:   make(map[uint64]chan int64),
		notifications: make(chan TransactionNotification, 10000),
		done:          make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	c.wg.Add(1)
	go c.filterLoop()

	// Establish the initial (empty-filter) subscription
	c.kickFilter()

	return c, nil
}

// Notifications returns the channel of decoded transaction notifications.
// The channel is closed by Close.
func (c *Client) Notifications() <-chan TransactionNotification {
	return c.notifications
}

// UpdateFilter replaces the subscription filter with the given token set.
// The update is fire-and-forget: it never blocks the caller, and the empty
// set idles the filter without tearing down the connection.
func (c *Client) UpdateFilter(tokens []string) {
	if c.closed.Load() {
		return
	}

	sorted := make([]string, len(tokens))
	copy(sorted, tokens)
	sort.Strings(sorted)

	c.filterMu.Lock()
	c.filterTokens = sorted
	c.filterMu.Unlock()

	observability.RecordFilterUpdate(len(sorted))
	c.kickFilter()
}

// kickFilter wakes the filter loop; bursts coalesce into one apply.
func (c *Client) kickFilter() {
	select {
	case c.filterCh <- struct{}{}:
	default:
	}
}

// Close closes the connection and the notification channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	// Close pending subscription channels
	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.wg.Wait()
	close(c.notifications)
	return nil
}

// connect establishes the WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// filterLoop applies the latest desired filter whenever kicked.
func (c *Client) filterLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case <-c.filterCh:
			if err := c.applyFilter(0); err != nil && !c.closed.Load() {
				log.Printf("[stream] filter update failed: %v", err)
			}
		}
	}
}

// applyFilter subscribes with the current desired token set and then
// unsubscribes the previous subscription. fromSlot is a resume hint used
// after reconnects; zero means "from latest".
func (c *Client) applyFilter(fromSlot int64) error {
	c.filterMu.Lock()
	tokens := make([]string, len(c.filterTokens))
	copy(tokens, c.filterTokens)
	c.filterMu.Unlock()

	newSubID, err := c.subscribe(tokens, fromSlot)
	if err != nil {
		return err
	}

	c.filterMu.Lock()
	oldSubID := c.subID
	c.subID = newSubID
	c.filterMu.Unlock()

	if oldSubID != 0 && oldSubID != newSubID {
		c.unsubscribe(oldSubID)
	}

	return nil
}

// subscribe sends a transactionSubscribe request and waits for its
// confirmation.
func (c *Client) subscribe(tokens []string, fromSlot int64) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)

	if tokens == nil {
		tokens = []string{}
	}
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "transactionSubscribe",
		Params: []interface{}{
			wsTransactionFilter{AccountInclude: tokens, Failed: false},
			wsSubscribeOptions{Commitment: "confirmed", FromSlot: fromSlot},
		},
	}

	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	dropPending := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		dropPending()
		return 0, fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		dropPending()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID, ok := <-confirmCh:
		if !ok {
			return 0, fmt.Errorf("client closed")
		}
		return subID, nil
	case <-time.After(c.config.SubscribeTimeout):
		dropPending()
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	}
}

// unsubscribe tears down a superseded subscription. Best effort; the
// confirmation is not awaited.
func (c *Client) unsubscribe(subID int64) {
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "transactionUnsubscribe",
		Params:  []interface{}{subID},
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		log.Printf("[stream] unsubscribe %d failed: %v", subID, err)
	}
}

// readLoop reads messages and dispatches them; on connection errors it
// drives reconnection with exponential backoff.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Connection error - attempt reconnect with exponential backoff
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Any received message resets the retry state
		reconnectDelay = c.config.ReconnectDelay
		c.retryCount.Store(0)

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and re-establish the subscription.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	// Close existing connection
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		c.retryCount.Add(1)
		return
	}

	observability.RecordStreamReconnect()

	// Resume from the last seen slot unless too many consecutive attempts
	// failed; then restart from latest and accept the gap
	fromSlot := c.lastSlot.Load()
	if int(c.retryCount.Load()) > c.config.MaxResumeRetries {
		fromSlot = 0
	}

	if err := c.applyFilter(fromSlot); err != nil && !c.closed.Load() {
		log.Printf("[stream] resubscribe after reconnect failed: %v", err)
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *Client) handleMessage(message []byte) {
	// Try to parse as subscription response first
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		c.handleSubscribeResponse(&resp)
		return
	}

	// Try to parse as notification
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "transactionNotification" {
		c.handleTransactionNotification(&notif)
		return
	}

	// Check for error response
	var errResp struct {
		JSONRPC string `json:"jsonrpc"`
		ID      uint64 `json:"id"`
		Error   *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		// Per-message decode errors are non-fatal; the pending subscribe
		// (if any) times out on its own
		log.Printf("[stream] error response: code=%d msg=%s", errResp.Error.Code, errResp.Error.Message)
	}
}

// handleSubscribeResponse handles subscription confirmation.
func (c *Client) handleSubscribeResponse(resp *wsSubscribeResponse) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[resp.ID]
	if ok {
		delete(c.pendingSubs, resp.ID)
	}
	c.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result:
		default:
		}
	}
}

// handleTransactionNotification converts and forwards a notification.
func (c *Client) handleTransactionNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	value := notif.Params.Result.Value

	n := TransactionNotification{
		Signature:   value.Signature,
		BlockTimeMs: value.BlockTime,
		Logs:        value.Logs,
		AccountKeys: value.AccountKeys,
		Err:         value.Err,
	}
	if notif.Params.Result.Context != nil {
		n.Slot = notif.Params.Result.Context.Slot
		c.lastSlot.Store(n.Slot)
	}

	observability.RecordStreamMessage()

	// Block until we can send - never drop events
	select {
	case c.notifications <- n:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}
