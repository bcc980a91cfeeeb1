package iprange

import (
	"errors"
	"testing"
)

func TestParseSingleIPv4(t *testing.T) {
	r, err := Parse("1.2.3.4")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if r.StartHex != "01020304" || r.EndHex != "01020304" {
		t.Fatalf("unexpected bounds: %q..%q", r.StartHex, r.EndHex)
	}
	if r.IsRange || r.IsIPv6 {
		t.Fatalf("single IPv4 misclassified: %+v", r)
	}
	if r.Target != "1.2.3.4" {
		t.Fatalf("unexpected normalized target %q", r.Target)
	}
}

func TestParseCIDRBounds(t *testing.T) {
	r, err := Parse("1.2.3.0/24")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if r.StartHex != "01020300" || r.EndHex != "010203FF" {
		t.Fatalf("unexpected bounds: %q..%q", r.StartHex, r.EndHex)
	}
	if !r.IsRange {
		t.Fatal("CIDR not marked as range")
	}
	if r.Target != "1.2.3.0/24" {
		t.Fatalf("unexpected normalized target %q", r.Target)
	}
}

func TestParseCIDRNormalizesHostBits(t *testing.T) {
	r, err := Parse("1.2.3.55/24")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if r.Target != "1.2.3.0/24" {
		t.Fatalf("host bits survived normalization: %q", r.Target)
	}
}

func TestParseRejectsWideRange(t *testing.T) {
	for _, target := range []string{"1.0.0.0/10", "10.0.0.0/8", "2001:db8::/15"} {
		if _, err := Parse(target); !errors.Is(err, ErrRangeTooWide) {
			t.Errorf("Parse(%q) = %v, want ErrRangeTooWide", target, err)
		}
	}

	// Exactly /16 stays inside one bucket and must be accepted.
	if _, err := Parse("1.2.0.0/16"); err != nil {
		t.Errorf("Parse(1.2.0.0/16) returned error: %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, target := range []string{"", "no-such-host", "1.2.3", "1.2.3.4/33", "300.1.1.1"} {
		if _, err := Parse(target); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("Parse(%q) = %v, want ErrInvalidTarget", target, err)
		}
	}
}

func TestIPv6HexWidth(t *testing.T) {
	r, err := Parse("2001:db8::1")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !r.IsIPv6 {
		t.Fatal("IPv6 address not flagged")
	}
	if len(r.StartHex) != len(v6Tag)+hexWidthV6 {
		t.Fatalf("unexpected hex width %d for %q", len(r.StartHex), r.StartHex)
	}
	if r.StartHex != "v6-20010DB8000000000000000000000001" {
		t.Fatalf("unexpected hex %q", r.StartHex)
	}
}

func TestPrefixBucket(t *testing.T) {
	tests := []struct {
		hex  string
		want string
	}{
		{"01020304", "0102"},
		{"v6-20010DB8000000000000000000000001", "v6-2001"},
	}
	for _, tt := range tests {
		if got := PrefixBucket(tt.hex); got != tt.want {
			t.Errorf("PrefixBucket(%q) = %q, want %q", tt.hex, got, tt.want)
		}
	}
}

func TestCovers(t *testing.T) {
	r, err := Parse("1.2.3.0/24")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	inside, _ := IPToHex("1.2.3.55")
	outside, _ := IPToHex("1.2.4.1")

	if !Covers(inside, r.StartHex, r.EndHex) {
		t.Error("1.2.3.55 should be covered by 1.2.3.0/24")
	}
	if Covers(outside, r.StartHex, r.EndHex) {
		t.Error("1.2.4.1 should not be covered by 1.2.3.0/24")
	}
}
