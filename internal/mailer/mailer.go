// Package mailer sends transactional email through an HTTP email API.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 10 * time.Second

// ErrNotConfigured is returned when the API URL or key is missing.
var ErrNotConfigured = errors.New("email API not configured")

// Message is one outgoing email. Empty From and To fall back to the client defaults.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Client posts messages to {baseURL}/emails with a bearer key.
type Client struct {
	baseURL string
	apiKey  string
	from    string
	to      string
	timeout time.Duration
}

// New returns a client, or nil when baseURL or apiKey is empty.
func New(baseURL, apiKey, from, to string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" || strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, from: from, to: to, timeout: DefaultTimeout}
}

// WithTimeout overrides the per request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// Send delivers msg. Any non-2xx response is an error carrying the status and body.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil {
		return ErrNotConfigured
	}
	if msg.From == "" {
		msg.From = c.from
	}
	if msg.To == "" {
		msg.To = c.to
	}
	if msg.To == "" {
		return errors.New("email recipient is empty")
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(c.baseURL+"/emails").
		Set(fiber.HeaderAuthorization, "Bearer "+c.apiKey).
		JSON(msg).
		Timeout(timeout)
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("send email: %w", errors.Join(errs...))
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("email API returned %d: %s", status, truncate(string(body), 512))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
