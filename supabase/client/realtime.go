package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const heartbeatInterval = 30 * time.Second

// RealtimeClient handles Supabase Realtime subscriptions over the Phoenix
// channel protocol.
type RealtimeClient struct {
	mu       sync.RWMutex
	url      string
	apiKey   string
	conn     *websocket.Conn
	channels map[string]*Channel
	handlers map[string][]EventHandler
	done     chan struct{}
	lost     chan struct{}
	ref      int
}

// EventHandler handles realtime events.
type EventHandler func(event *RealtimeEvent)

// RealtimeEvent is one Phoenix frame received on a joined channel.
type RealtimeEvent struct {
	Event   string          `json:"event"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref,omitempty"`
}

// ChangeType returns INSERT, UPDATE or DELETE for postgres change frames.
func (e *RealtimeEvent) ChangeType() string {
	p := gjson.ParseBytes(e.Payload)
	if t := p.Get("data.type"); t.Exists() {
		return t.String()
	}
	if t := p.Get("type"); t.Exists() {
		return t.String()
	}
	return e.Event
}

// Table is the table a postgres change frame refers to.
func (e *RealtimeEvent) Table() string {
	p := gjson.ParseBytes(e.Payload)
	if t := p.Get("data.table"); t.Exists() {
		return t.String()
	}
	return p.Get("table").String()
}

// Record is the new row for INSERT/UPDATE frames.
func (e *RealtimeEvent) Record() gjson.Result {
	p := gjson.ParseBytes(e.Payload)
	if r := p.Get("data.record"); r.Exists() {
		return r
	}
	return p.Get("record")
}

// OldRecord is the previous row for UPDATE/DELETE frames.
func (e *RealtimeEvent) OldRecord() gjson.Result {
	p := gjson.ParseBytes(e.Payload)
	if r := p.Get("data.old_record"); r.Exists() {
		return r
	}
	return p.Get("old_record")
}

// Channel represents a realtime channel.
type Channel struct {
	client  *RealtimeClient
	topic   string
	changes []PostgresChangesConfig
	joined  bool
	joinRef string
}

// NewRealtimeClient creates a new realtime client.
func NewRealtimeClient(supabaseURL, apiKey string) *RealtimeClient {
	wsURL := strings.TrimSuffix(supabaseURL, "/")
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	wsURL += "/realtime/v1/websocket?apikey=" + url.QueryEscape(apiKey) + "&vsn=1.0.0"

	return &RealtimeClient{
		url:      wsURL,
		apiKey:   apiKey,
		channels: make(map[string]*Channel),
		handlers: make(map[string][]EventHandler),
		done:     make(chan struct{}),
		lost:     make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and rejoins known channels.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	r.conn = conn
	r.done = make(chan struct{})
	r.lost = make(chan struct{})

	for _, ch := range r.channels {
		ch.joined = false
		if err := ch.joinLocked(); err != nil {
			r.conn.Close()
			r.conn = nil
			return err
		}
	}

	go r.handleMessages(conn, r.done, r.lost)
	go r.heartbeat(r.done)

	return nil
}

// Lost is closed when the current connection drops without Disconnect.
func (r *RealtimeClient) Lost() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lost
}

// Connected reports whether a socket is open.
func (r *RealtimeClient) Connected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn != nil
}

// Disconnect closes the WebSocket connection.
func (r *RealtimeClient) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}

	close(r.done)

	err := r.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	r.conn.Close()
	r.conn = nil
	for _, ch := range r.channels {
		ch.joined = false
	}
	if err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return nil
}

// Channel returns or creates a channel.
func (r *RealtimeClient) Channel(topic string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[topic]; ok {
		return ch
	}

	ch := &Channel{
		client: r,
		topic:  topic,
	}
	r.channels[topic] = ch
	return ch
}

// Topic returns the channel topic.
func (c *Channel) Topic() string { return c.topic }

// Subscribe joins the channel.
func (c *Channel) Subscribe(ctx context.Context) error {
	c.client.mu.Lock()
	defer c.client.mu.Unlock()

	if c.joined {
		return nil
	}
	if c.client.conn == nil {
		// Joined on the next Connect.
		return nil
	}
	return c.joinLocked()
}

func (c *Channel) joinLocked() error {
	c.client.ref++
	ref := strconv.Itoa(c.client.ref)
	c.joinRef = ref

	changes := make([]map[string]string, 0, len(c.changes))
	for _, pc := range c.changes {
		entry := map[string]string{
			"event":  pc.Event,
			"schema": pc.Schema,
			"table":  pc.Table,
		}
		if pc.Filter != "" {
			entry["filter"] = pc.Filter
		}
		changes = append(changes, entry)
	}

	msg := map[string]any{
		"topic": c.topic,
		"event": "phx_join",
		"payload": map[string]any{
			"config": map[string]any{
				"postgres_changes": changes,
			},
			"access_token": c.client.apiKey,
		},
		"ref":      ref,
		"join_ref": ref,
	}

	if err := c.client.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	c.joined = true
	return nil
}

// Unsubscribe leaves the channel and forgets its handlers.
func (c *Channel) Unsubscribe(ctx context.Context) error {
	c.client.mu.Lock()
	defer c.client.mu.Unlock()

	delete(c.client.channels, c.topic)
	for key := range c.client.handlers {
		if strings.HasPrefix(key, c.topic+":") {
			delete(c.client.handlers, key)
		}
	}

	if !c.joined || c.client.conn == nil {
		c.joined = false
		return nil
	}

	c.client.ref++
	msg := map[string]any{
		"topic":    c.topic,
		"event":    "phx_leave",
		"payload":  map[string]any{},
		"ref":      strconv.Itoa(c.client.ref),
		"join_ref": c.joinRef,
	}

	c.joined = false
	if err := c.client.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send leave: %w", err)
	}
	return nil
}

// On registers an event handler.
func (c *Channel) On(event string, handler EventHandler) *Channel {
	c.client.mu.Lock()
	defer c.client.mu.Unlock()

	key := c.topic + ":" + event
	c.client.handlers[key] = append(c.client.handlers[key], handler)
	return c
}

// OnInsert registers a handler for INSERT events.
func (c *Channel) OnInsert(handler EventHandler) *Channel {
	return c.On("INSERT", handler)
}

// OnUpdate registers a handler for UPDATE events.
func (c *Channel) OnUpdate(handler EventHandler) *Channel {
	return c.On("UPDATE", handler)
}

// OnDelete registers a handler for DELETE events.
func (c *Channel) OnDelete(handler EventHandler) *Channel {
	return c.On("DELETE", handler)
}

// OnAll registers a handler for all events.
func (c *Channel) OnAll(handler EventHandler) *Channel {
	c.On("INSERT", handler)
	c.On("UPDATE", handler)
	c.On("DELETE", handler)
	return c
}

func (r *RealtimeClient) handleMessages(conn *websocket.Conn, done, lost chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			select {
			case <-done:
			default:
				if r.conn == conn {
					r.conn.Close()
					r.conn = nil
					for _, ch := range r.channels {
						ch.joined = false
					}
				}
				close(lost)
			}
			r.mu.Unlock()
			return
		}

		var event RealtimeEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		switch event.Event {
		case "phx_reply", "phx_close", "phx_error", "presence_state", "presence_diff", "system":
			continue
		}

		r.dispatchEvent(&event)
	}
}

func (r *RealtimeClient) dispatchEvent(event *RealtimeEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := event.Topic + ":" + event.ChangeType()
	for _, handler := range r.handlers[key] {
		go handler(event)
	}
}

func (r *RealtimeClient) heartbeat(done chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.conn == nil {
				r.mu.Unlock()
				return
			}
			r.ref++
			msg := map[string]any{
				"topic":   "phoenix",
				"event":   "heartbeat",
				"payload": map[string]any{},
				"ref":     strconv.Itoa(r.ref),
			}
			_ = r.conn.WriteJSON(msg)
			r.mu.Unlock()
		}
	}
}

// =============================================================================
// Postgres Changes Subscription
// =============================================================================

// PostgresChangesConfig configures postgres changes subscription.
type PostgresChangesConfig struct {
	Event  string // INSERT, UPDATE, DELETE, *
	Schema string
	Table  string
	Filter string // Optional filter like "client_username=eq.ana"
}

// SubscribeToPostgresChanges subscribes to row changes on one table.
func (r *RealtimeClient) SubscribeToPostgresChanges(ctx context.Context, cfg PostgresChangesConfig, handler EventHandler) (*Channel, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("table is required")
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Event == "" {
		cfg.Event = "*"
	}

	topic := fmt.Sprintf("realtime:%s:%s", cfg.Schema, cfg.Table)
	if cfg.Filter != "" {
		topic += ":" + cfg.Filter
	}

	ch := r.Channel(topic)
	r.mu.Lock()
	ch.changes = append(ch.changes, cfg)
	r.mu.Unlock()

	switch cfg.Event {
	case "*":
		ch.OnAll(handler)
	case "INSERT":
		ch.OnInsert(handler)
	case "UPDATE":
		ch.OnUpdate(handler)
	case "DELETE":
		ch.OnDelete(handler)
	default:
		return nil, fmt.Errorf("unsupported event %q", cfg.Event)
	}

	if err := ch.Subscribe(ctx); err != nil {
		return nil, err
	}

	return ch, nil
}
