package validation

import (
	"fmt"
	"strings"

	"launchpad/internal/models"
)

// NormalizeTags lowercases, trims and dedupes tags, preserving first-seen order.
// Blank entries are dropped. It fails when a tag is too long or there are too many.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if len(tag) > models.MaxTagLength {
			return nil, fmt.Errorf("tag %q exceeds %d characters", tag, models.MaxTagLength)
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > models.MaxProductTags {
		return nil, fmt.Errorf("at most %d tags are allowed", models.MaxProductTags)
	}
	return out, nil
}
