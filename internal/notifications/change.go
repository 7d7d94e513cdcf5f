package notifications

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row change events.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
	EventAll    = "*"
)

// Tables that clients may subscribe to.
var subscribableTables = map[string]struct{}{
	"products":          {},
	"product_likes":     {},
	"product_comments":  {},
	"comment_likes":     {},
	"product_bookmarks": {},
	"articles":          {},
	"article_likes":     {},
	"article_bookmarks": {},
	"follows":           {},
	"news":              {},
}

// IsSubscribableTable reports whether table is exposed on the realtime channel.
func IsSubscribableTable(table string) bool {
	_, ok := subscribableTables[table]
	return ok
}

// Change is one row mutation fanned out to subscribers.
type Change struct {
	Table           string          `json:"table"`
	Event           string          `json:"event"`
	Record          json.RawMessage `json:"record"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewChange marshals record into a change stamped with the current time.
func NewChange(table, event string, record any) (Change, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return Change{}, fmt.Errorf("marshal %s record: %w", table, err)
	}
	return Change{Table: table, Event: event, Record: raw, CommitTimestamp: time.Now().UTC()}, nil
}

// ErrInvalidFilter is returned for filters that are not column=eq.value.
var ErrInvalidFilter = errors.New("filter must have the form column=eq.value")

// Filter restricts a subscription to rows whose column equals value.
// The zero Filter matches every row.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses "column=eq.value". An empty string yields the zero Filter.
func ParseFilter(raw string) (Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(raw, "=")
	if !ok {
		return Filter{}, ErrInvalidFilter
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok || column == "" || !isIdentifier(column) {
		return Filter{}, ErrInvalidFilter
	}
	return Filter{Column: column, Value: value}, nil
}

// Matches reports whether the JSON record satisfies the filter.
func (f Filter) Matches(record json.RawMessage) bool {
	if f.Column == "" {
		return true
	}
	dec := json.NewDecoder(bytes.NewReader(record))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return false
	}
	v, ok := row[f.Column]
	if !ok {
		return false
	}
	switch tv := v.(type) {
	case json.Number:
		return tv.String() == f.Value
	case string:
		return tv == f.Value
	case bool:
		return strconv.FormatBool(tv) == f.Value
	case nil:
		return f.Value == "null"
	default:
		return false
	}
}

func isIdentifier(s string) bool {
	for _, r := range s {
		if r != '_' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// NormalizeEvent upper-cases event and defaults it to "*".
func NormalizeEvent(event string) (string, bool) {
	event = strings.ToUpper(strings.TrimSpace(event))
	switch event {
	case "":
		return EventAll, true
	case EventAll, EventInsert, EventUpdate, EventDelete:
		return event, true
	default:
		return "", false
	}
}
