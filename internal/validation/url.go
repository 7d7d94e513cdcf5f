package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL accepts an empty string or an absolute http(s) URL with a host.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if len(raw) > 2048 {
		return fmt.Errorf("url must not exceed 2048 characters")
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("url must include a host")
	}
	return nil
}

// ValidateMediaURL accepts what ValidateURL accepts plus paths into the local media bucket.
func ValidateMediaURL(raw string) error {
	if strings.HasPrefix(strings.TrimSpace(raw), "/media/") {
		return nil
	}
	return ValidateURL(raw)
}
