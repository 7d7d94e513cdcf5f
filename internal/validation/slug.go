package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds generated and user supplied slugs.
const MaxSlugLength = 100

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

var reservedSlugs = map[string]struct{}{
	"admin":     {},
	"api":       {},
	"auth":      {},
	"new":       {},
	"slug":      {},
	"settings":  {},
	"profile":   {},
	"users":     {},
	"products":  {},
	"articles":  {},
	"news":      {},
	"bookmarks": {},
	"realtime":  {},
	"swagger":   {},
	"metrics":   {},
	"login":     {},
	"signup":    {},
}

// Slugify turns a display name into a URL slug: lowercase ASCII words joined by hyphens.
// Accents are folded ("Café" -> "cafe"); everything else that is not a letter or digit separates words.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range norm.NFKD.String(name) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	slug := b.String()
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	return slug
}

// ValidateSlug validates slug format and reserved names.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug is required")
	}
	if len(slug) > MaxSlugLength {
		return fmt.Errorf("slug must not exceed %d characters", MaxSlugLength)
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("slug can only contain lowercase letters, numbers, and single hyphens")
	}
	if IsReservedSlug(slug) {
		return fmt.Errorf("slug is reserved")
	}
	return nil
}

// IsReservedSlug reports whether slug collides with a route segment.
func IsReservedSlug(slug string) bool {
	_, exists := reservedSlugs[slug]
	return exists
}
