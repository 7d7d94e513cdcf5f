// Command realtimetest load-tests realtime fanout: many subscribers watch one
// product's comments while a writer posts through the REST API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"launchpad/internal/middleware"
	"launchpad/internal/notifications"
	"launchpad/internal/seed"

	"github.com/gorilla/websocket"
)

const markerPrefix = "realtimetest:"

// Metrics tracks the run.
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	CommentsPosted       int64
	ChangesReceived      int64
	LatencyTotalMicros   int64
	Errors               int64
}

var metrics Metrics

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	email := flag.String("email", "", "login email of an existing account")
	password := flag.String("password", seed.DefaultPassword, "login password")
	productID := flag.Uint("product", 1, "product whose comments are watched")
	clients := flag.Int("clients", 50, "number of concurrent subscribers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	interval := flag.Duration("interval", time.Second, "delay between posted comments")
	flag.Parse()

	log := middleware.Logger
	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: realtimetest -email <email> [-password p] [-product id] [-clients n]")
		os.Exit(2)
	}

	token, err := login(*host, *email, *password)
	if err != nil {
		log.Error("login failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("starting realtime test",
		slog.String("host", *host),
		slog.Int("clients", *clients),
		slog.Duration("duration", *duration),
		slog.Uint64("product_id", uint64(*productID)),
	)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	ready := make(chan struct{}, *clients)

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runSubscriber(*host, token, *productID, stop, ready, &wg)
		// Stagger connections so ticket issuance stays under the rate limit.
		time.Sleep(20 * time.Millisecond)
	}
	for i := 0; i < *clients; i++ {
		select {
		case <-ready:
		case <-time.After(5 * time.Second):
		}
	}

	wg.Add(1)
	go runWriter(*host, token, *productID, *interval, stop, &wg)

	select {
	case <-time.After(*duration):
		log.Info("duration reached")
	case <-interrupt:
		log.Info("interrupted")
	}
	close(stop)
	wg.Wait()

	printMetrics(*clients)
}

func postJSON(host, path, token string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s%s", host, path), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func login(host, email, password string) (string, error) {
	var result struct {
		Token string `json:"token"`
	}
	err := postJSON(host, "/api/auth/login", "", map[string]string{"email": email, "password": password}, &result)
	return result.Token, err
}

func getTicket(host, token string) (string, error) {
	var result struct {
		Ticket string `json:"ticket"`
	}
	err := postJSON(host, "/api/realtime/ticket", token, nil, &result)
	return result.Ticket, err
}

func runSubscriber(host, token string, productID uint, stop <-chan struct{}, ready chan<- struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	fail := func() {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
	}

	ticket, err := getTicket(host, token)
	if err != nil {
		fail()
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/realtime", RawQuery: "ticket=" + url.QueryEscape(ticket)}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		fail()
		return
	}
	defer func() { _ = c.Close() }()

	err = c.WriteJSON(notifications.ClientMessage{
		Type:   notifications.TypeSubscribe,
		Topic:  "comments",
		Table:  "product_comments",
		Event:  notifications.EventInsert,
		Filter: fmt.Sprintf("product_id=eq.%d", productID),
	})
	if err != nil {
		fail()
		return
	}
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)
	ready <- struct{}{}

	go func() {
		<-stop
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.Close()
	}()

	for {
		var frame struct {
			Type    string               `json:"type"`
			Payload notifications.Change `json:"payload"`
		}
		if err := c.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Type != notifications.TypePostgresChanges {
			continue
		}
		atomic.AddInt64(&metrics.ChangesReceived, 1)
		if sent, ok := markerSentAt(frame.Payload.Record); ok {
			atomic.AddInt64(&metrics.LatencyTotalMicros, time.Since(sent).Microseconds())
		}
	}
}

// markerSentAt extracts the send time the writer embedded in the comment body.
func markerSentAt(record json.RawMessage) (time.Time, bool) {
	var row struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(record, &row); err != nil || !strings.HasPrefix(row.Content, markerPrefix) {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(strings.TrimPrefix(row.Content, markerPrefix), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}

func runWriter(host, token string, productID uint, interval time.Duration, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	path := fmt.Sprintf("/api/products/%d/comments", productID)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			body := map[string]string{"content": markerPrefix + strconv.FormatInt(time.Now().UnixNano(), 10)}
			if err := postJSON(host, path, token, body, nil); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.CommentsPosted, 1)
		}
	}
}

func printMetrics(clients int) {
	received := atomic.LoadInt64(&metrics.ChangesReceived)
	posted := atomic.LoadInt64(&metrics.CommentsPosted)
	connected := atomic.LoadInt64(&metrics.ConnectionsSuccess)

	var avg time.Duration
	if received > 0 {
		avg = time.Duration(atomic.LoadInt64(&metrics.LatencyTotalMicros)/received) * time.Microsecond
	}
	var delivery float64
	if expected := posted * connected; expected > 0 {
		delivery = float64(received) / float64(expected)
	}

	middleware.Logger.Info("realtime test results",
		slog.Int("clients", clients),
		slog.Int64("connections_attempted", atomic.LoadInt64(&metrics.ConnectionsAttempted)),
		slog.Int64("connections_success", connected),
		slog.Int64("connections_failed", atomic.LoadInt64(&metrics.ConnectionsFailed)),
		slog.Int64("comments_posted", posted),
		slog.Int64("changes_received", received),
		slog.Float64("delivery_ratio", delivery),
		slog.Duration("avg_latency", avg),
		slog.Int64("errors", atomic.LoadInt64(&metrics.Errors)),
	)
}
