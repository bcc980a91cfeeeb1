package manager

import (
	"fmt"
	"strings"
	"time"
)

var infiniteExpiries = map[string]struct{}{
	"":           {},
	"never":      {},
	"infinite":   {},
	"indefinite": {},
	"infinity":   {},
}

// ParseExpiry turns an operator-supplied expiry into an absolute instant.
// Accepted forms: one of the "never" spellings (nil result), a Go duration
// relative to now ("72h", "30m"), or an absolute RFC 3339 timestamp.
func ParseExpiry(raw string, now time.Time) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if _, ok := infiniteExpiries[strings.ToLower(raw)]; ok {
		return nil, nil
	}

	if d, err := time.ParseDuration(strings.ToLower(raw)); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("expiry duration must be positive: %q", raw)
		}
		at := now.Add(d)
		return &at, nil
	}

	if at, err := time.Parse(time.RFC3339, raw); err == nil {
		if !at.After(now) {
			return nil, fmt.Errorf("expiry is in the past: %q", raw)
		}
		return &at, nil
	}

	return nil, fmt.Errorf("unparseable expiry: %q", raw)
}

// FormatExpiry renders an expiry for result lines and log params.
func FormatExpiry(expiresAt *time.Time) string {
	if expiresAt == nil {
		return "never"
	}
	return expiresAt.UTC().Format(time.RFC3339)
}
