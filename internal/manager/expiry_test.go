package manager

import (
	"testing"
	"time"
)

func TestParseExpiry(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, raw := range []string{"", "never", "Infinite", "indefinite"} {
		got, err := ParseExpiry(raw, now)
		if err != nil || got != nil {
			t.Errorf("ParseExpiry(%q) = %v, %v, want nil expiry", raw, got, err)
		}
	}

	got, err := ParseExpiry("72h", now)
	if err != nil || got == nil || !got.Equal(now.Add(72*time.Hour)) {
		t.Errorf("ParseExpiry(72h) = %v, %v", got, err)
	}

	got, err = ParseExpiry("2024-07-01T00:00:00Z", now)
	if err != nil || got == nil || !got.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseExpiry(rfc3339) = %v, %v", got, err)
	}

	for _, raw := range []string{"-5m", "2020-01-01T00:00:00Z", "soon", "0s"} {
		if _, err := ParseExpiry(raw, now); err == nil {
			t.Errorf("ParseExpiry(%q) should fail", raw)
		}
	}
}

func TestFormatExpiry(t *testing.T) {
	if got := FormatExpiry(nil); got != "never" {
		t.Errorf("FormatExpiry(nil) = %q", got)
	}
	at := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	if got := FormatExpiry(&at); got != "2024-07-01T00:00:00Z" {
		t.Errorf("FormatExpiry = %q", got)
	}
}
