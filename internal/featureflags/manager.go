// Package featureflags evaluates FEATURE_FLAGS rollout rules.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags consulted by the API.
const (
	// Realtime gates the /api/realtime websocket endpoint.
	Realtime = "realtime"
	// ProductDrafts lets makers save products with status "draft".
	ProductDrafts = "product_drafts"
	// ContactEmail sends contact form submissions through the email API.
	ContactEmail = "contact_email"
)

// defaults apply when FEATURE_FLAGS does not mention a flag.
var defaults = map[string]string{
	Realtime:      "on",
	ContactEmail:  "on",
	ProductDrafts: "off",
}

type rule struct {
	raw     string
	enabled bool
	percent int // -1 when the rule is a plain on/off switch
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "realtime=on,product_drafts=25%,contact_email=off"
type Manager struct {
	rules map[string]rule
}

// NewManager creates a feature-flag manager from a comma-separated config string.
// Unparseable values disable the flag.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule, len(defaults))
	for name, value := range defaults {
		rules[name] = parseRule(value)
	}

	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, value = normalize(name), normalize(value)
		if name == "" || value == "" {
			continue
		}
		rules[name] = parseRule(value)
	}

	return &Manager{rules: rules}
}

func parseRule(value string) rule {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, enabled: true, percent: -1}
	case "off", "false", "0":
		return rule{raw: value, percent: -1}
	}
	if pctRaw, ok := strings.CutSuffix(value, "%"); ok {
		if pct, err := strconv.Atoi(pctRaw); err == nil {
			return rule{raw: value, percent: min(max(pct, 0), 100)}
		}
	}
	return rule{raw: value, percent: -1}
}

// Enabled returns whether a flag is enabled for a given user.
// Percentage rules bucket users deterministically; anonymous users (id 0)
// only see flags rolled out to 100%.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	name = normalize(name)
	r, ok := m.rules[name]
	if !ok {
		return false
	}
	switch {
	case r.percent < 0:
		return r.enabled
	case r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	default:
		return rolloutBucket(name, userID) < r.percent
	}
}

// Names returns the configured flag names in sorted order.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.rules))
	for name := range m.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Raw returns a copy of configured flag values.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string)
	if m == nil {
		return out
	}
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	for _, name := range m.Names() {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", name, userID)
	return int(h.Sum32() % 100)
}
