package notifications

import (
	"context"
	"sync"
	"time"

	"launchpad/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384

	sendBufferSize = 256
)

var dropNotice = []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)

// WSHub is an interface for hubs that manage generic clients
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// subscription is one topic a client listens on.
type subscription struct {
	table  string
	event  string
	filter Filter
}

func (s subscription) matches(c Change) bool {
	if s.table != c.Table {
		return false
	}
	if s.event != EventAll && s.event != c.Event {
		return false
	}
	return s.filter.Matches(c.Record)
}

// Client is a middleman between the websocket connection and a hub.
type Client struct {
	Hub WSHub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	UserID uint
	ID     string

	// Callback for handling incoming messages
	IncomingHandler func(*Client, []byte)

	logger *observability.WSLogger

	subsMu sync.RWMutex
	subs   map[string]subscription

	closeOnce sync.Once
	// closeMsg is the close frame payload WritePump sends once Send is closed.
	closeMsg []byte
}

// NewClient creates a new Client instance
func NewClient(hub WSHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		ID:     uuid.NewString(),
		Send:   make(chan []byte, sendBufferSize),
		logger: observability.NewWSLogger(hub.Name(), nil),
		subs:   make(map[string]subscription),
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
func (c *Client) ReadPump() {
	reason := "closed"
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
		c.logger.LogDisconnect(context.Background(), c.UserID, c.ID, reason)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.LogError(context.Background(), c.UserID, err, "read")
				reason = "read_error"
			}
			break
		}

		if c.IncomingHandler != nil {
			c.IncomingHandler(c, message)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, c.closeMsg)
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a message without blocking. The last buffer slot is kept for
// the drop notice so a lagging client learns it has to refetch.
func (c *Client) TrySend(message []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
			sent = false
		}
	}()

	if len(c.Send) < cap(c.Send)-1 {
		select {
		case c.Send <- message:
			return true
		default:
		}
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
	select {
	case c.Send <- dropNotice:
	default:
	}
	return false
}

func (c *Client) closeSend() {
	c.closeWith(nil)
}

func (c *Client) closeWith(msg []byte) {
	c.closeOnce.Do(func() {
		c.closeMsg = msg
		close(c.Send)
	})
}

func (c *Client) subscribe(topic string, s subscription) (added bool) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	_, existed := c.subs[topic]
	c.subs[topic] = s
	return !existed
}

func (c *Client) unsubscribe(topic string) bool {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if _, ok := c.subs[topic]; !ok {
		return false
	}
	delete(c.subs, topic)
	return true
}

func (c *Client) subscriptionCount() int {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return len(c.subs)
}

// matchingTopics returns the topics whose subscription accepts the change.
func (c *Client) matchingTopics(change Change) []string {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	var topics []string
	for topic, s := range c.subs {
		if s.matches(change) {
			topics = append(topics, topic)
		}
	}
	return topics
}
