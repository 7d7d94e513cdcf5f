package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"launchpad/internal/notifications"
	"launchpad/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen serves ts.app on a loopback port and wires the realtime hub.
func (ts *testServer) listen(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ts.hub.StartWiring(ctx, ts.notifier))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.app.Listener(ln) }()

	t.Cleanup(func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = ts.hub.Shutdown(shutdownCtx)
		_ = ts.app.ShutdownWithContext(shutdownCtx)
	})
	return ln.Addr().String()
}

func dialRealtime(t *testing.T, addr, query string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	return dialer.Dial(fmt.Sprintf("ws://%s/api/realtime%s", addr, query), header)
}

func readFrame(t *testing.T, conn *websocket.Conn) notifications.ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg notifications.ServerMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestRealtime_CommentChangesReachSubscribers(t *testing.T) {
	for _, tc := range []struct {
		name  string
		build func(t *testing.T) *testServer
	}{
		{"redis fanout", newTestServer},
		{"local dispatch", newLocalTestServer},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ts := tc.build(t)
			addr := ts.listen(t)
			maker := testutil.CreateUser(t, ts.db, "maker")
			watcher := testutil.CreateUser(t, ts.db, "watcher")
			product := testutil.CreateProduct(t, ts.db, maker.ID, "Radar")
			other := testutil.CreateProduct(t, ts.db, maker.ID, "Sonar")

			conn, _, err := dialRealtime(t, addr, "", http.Header{
				"Authorization": []string{"Bearer " + tokenFor(t, watcher.ID)},
			})
			require.NoError(t, err)
			defer func() { _ = conn.Close() }()

			require.NoError(t, conn.WriteJSON(notifications.ClientMessage{
				Type:   notifications.TypeSubscribe,
				Topic:  "radar-comments",
				Table:  "product_comments",
				Event:  "INSERT",
				Filter: fmt.Sprintf("product_id=eq.%d", product.ID),
			}))
			ack := readFrame(t, conn)
			require.Equal(t, notifications.TypeSubscribed, ack.Type)
			assert.Equal(t, "radar-comments", ack.Topic)

			// A comment on another product must not be delivered.
			resp, _ := ts.do(t, http.MethodPost, fmt.Sprintf("/api/products/%d/comments", other.ID), tokenFor(t, maker.ID), map[string]any{"content": "elsewhere"})
			require.Equal(t, http.StatusCreated, resp.StatusCode)
			resp, _ = ts.do(t, http.MethodPost, fmt.Sprintf("/api/products/%d/comments", product.ID), tokenFor(t, maker.ID), map[string]any{"content": "ping"})
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			frame := readFrame(t, conn)
			require.Equal(t, notifications.TypePostgresChanges, frame.Type)
			assert.Equal(t, "radar-comments", frame.Topic)

			raw, err := json.Marshal(frame.Payload)
			require.NoError(t, err)
			var change notifications.Change
			require.NoError(t, json.Unmarshal(raw, &change))
			assert.Equal(t, "product_comments", change.Table)
			assert.Equal(t, notifications.EventInsert, change.Event)
			assert.JSONEq(t, `"ping"`, string(mustField(t, change.Record, "content")))
		})
	}
}

func TestRealtime_ShutdownSendsGoingAway(t *testing.T) {
	ts := newLocalTestServer(t)
	addr := ts.listen(t)
	watcher := testutil.CreateUser(t, ts.db, "watcher")

	conn, _, err := dialRealtime(t, addr, "", http.Header{
		"Authorization": []string{"Bearer " + tokenFor(t, watcher.ID)},
	})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteJSON(notifications.ClientMessage{
		Type:  notifications.TypeSubscribe,
		Topic: "all-comments",
		Table: "product_comments",
		Event: "*",
	}))
	require.Equal(t, notifications.TypeSubscribed, readFrame(t, conn).Type)

	require.NoError(t, ts.hub.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestRealtime_TicketHandshake(t *testing.T) {
	ts := newTestServer(t)
	addr := ts.listen(t)
	alice := testutil.CreateUser(t, ts.db, "alice")

	_, body := ts.do(t, http.MethodPost, "/api/realtime/ticket", tokenFor(t, alice.ID), nil)
	ticket := decode[ticketResponse](t, body).Ticket

	conn, _, err := dialRealtime(t, addr, "?ticket="+ticket, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(notifications.ClientMessage{Type: notifications.TypeSubscribe, Topic: "news", Table: "nope"}))
	assert.Equal(t, notifications.TypeError, readFrame(t, conn).Type)
	_ = conn.Close()

	// The ticket was consumed by the first handshake.
	_, resp, err := dialRealtime(t, addr, "?ticket="+ticket, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Query tokens are refused on the upgrade path.
	_, resp, err = dialRealtime(t, addr, "?token="+tokenFor(t, alice.ID), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRealtime_FlagOff(t *testing.T) {
	ts := newTestServerWithFlags(t, "realtime=off")
	addr := ts.listen(t)
	alice := testutil.CreateUser(t, ts.db, "alice")

	_, resp, err := dialRealtime(t, addr, "", http.Header{
		"Authorization": []string{"Bearer " + tokenFor(t, alice.ID)},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func mustField(t *testing.T, record json.RawMessage, field string) json.RawMessage {
	t.Helper()
	var row map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(record, &row))
	return row[field]
}
