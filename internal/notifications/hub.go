package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"launchpad/internal/observability"

	"github.com/gofiber/websocket/v2"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
	// Max topics a single connection may subscribe to
	maxSubsPerConn = 50

	maxTopicLength = 128
)

// Message types on the realtime channel.
const (
	TypeSubscribe       = "subscribe"
	TypeUnsubscribe     = "unsubscribe"
	TypeSubscribed      = "subscribed"
	TypeUnsubscribed    = "unsubscribed"
	TypePostgresChanges = "postgres_changes"
	TypeError           = "error"
)

// Registration failures.
var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// ClientMessage is a frame sent by a subscriber.
type ClientMessage struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Table  string `json:"table,omitempty"`
	Event  string `json:"event,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// ServerMessage is a frame sent to a subscriber.
type ServerMessage struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Hub maps userID -> connections and routes changes to subscribed topics.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
	logger     *observability.WSLogger
}

// NewHub creates an empty realtime hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[uint]map[*Client]struct{}),
		logger: observability.NewWSLogger("realtime", nil),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "realtime" }

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserFull
	}

	client := NewClient(h, conn, userID)
	client.IncomingHandler = h.HandleMessage

	m[client] = struct{}{}
	h.totalConns++
	observability.RealtimeConnections.Inc()
	h.logger.LogConnect(context.Background(), userID, client.ID)
	return client, nil
}

// UnregisterClient removes a client and closes its send buffer.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	if removed {
		observability.RealtimeConnections.Dec()
		observability.RealtimeSubscriptions.Sub(float64(client.subscriptionCount()))
		client.closeSend()
	}
}

// ConnectionCount returns the number of registered clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// HandleMessage processes a subscribe or unsubscribe frame from c.
func (h *Hub) HandleMessage(c *Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		sendError(c, "", "invalid message")
		return
	}
	msg.Topic = strings.TrimSpace(msg.Topic)
	if msg.Topic == "" || len(msg.Topic) > maxTopicLength {
		sendError(c, msg.Topic, "topic is required")
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		if !IsSubscribableTable(msg.Table) {
			sendError(c, msg.Topic, "unknown table")
			return
		}
		event, ok := NormalizeEvent(msg.Event)
		if !ok {
			sendError(c, msg.Topic, "event must be *, INSERT, UPDATE or DELETE")
			return
		}
		filter, err := ParseFilter(msg.Filter)
		if err != nil {
			sendError(c, msg.Topic, err.Error())
			return
		}
		if c.subscriptionCount() >= maxSubsPerConn {
			c.subsMu.RLock()
			_, replacing := c.subs[msg.Topic]
			c.subsMu.RUnlock()
			if !replacing {
				sendError(c, msg.Topic, "subscription limit reached")
				return
			}
		}
		if c.subscribe(msg.Topic, subscription{table: msg.Table, event: event, filter: filter}) {
			observability.RealtimeSubscriptions.Inc()
		}
		send(c, ServerMessage{Type: TypeSubscribed, Topic: msg.Topic})
	case TypeUnsubscribe:
		if c.unsubscribe(msg.Topic) {
			observability.RealtimeSubscriptions.Dec()
		}
		send(c, ServerMessage{Type: TypeUnsubscribed, Topic: msg.Topic})
	default:
		sendError(c, msg.Topic, "unknown message type")
	}
}

// Dispatch delivers change to every topic whose subscription matches.
func (h *Hub) Dispatch(change Change) {
	ctx, span := observability.GetTraceLayer().TraceWebSocket(context.Background(), h.Name(), "dispatch")
	defer span.End()

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, clients := range h.conns {
		for c := range clients {
			for _, topic := range c.matchingTopics(change) {
				send(c, ServerMessage{Type: TypePostgresChanges, Topic: topic, Payload: change})
				delivered++
			}
		}
	}
	observability.AddTraceAttributesToContext(ctx,
		attribute.String("realtime.table", change.Table),
		attribute.String("realtime.event", change.Event),
		attribute.Int("realtime.deliveries", delivered),
	)
	if delivered > 0 {
		observability.RealtimeEventsTotal.WithLabelValues(change.Table, change.Event).Inc()
	}
}

// StartWiring connects the notifier to this hub. With Redis the hub consumes
// the shared changes channel; without it the notifier calls Dispatch directly.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	if !n.HasRedis() {
		n.SetLocalHandler(h.Dispatch)
		return nil
	}
	return n.StartChangeSubscriber(ctx, h.Dispatch)
}

var shutdownCloseMessage = websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	conns := h.conns
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	// WritePump owns the connection's writer, so the close frame goes through it.
	for _, userConns := range conns {
		for client := range userConns {
			observability.RealtimeConnections.Dec()
			observability.RealtimeSubscriptions.Sub(float64(client.subscriptionCount()))
			client.closeWith(shutdownCloseMessage)
		}
	}
	h.logger.LogLifecycle(ctx, "shutdown")
	return nil
}

func send(c *Client, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.TrySend(data)
}

func sendError(c *Client, topic, message string) {
	send(c, ServerMessage{Type: TypeError, Topic: topic, Payload: map[string]string{"message": message}})
}
