package iprange

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrInvalidTarget = errors.New("iprange: not a valid IP or CIDR")

	// ErrRangeTooWide is returned for CIDR ranges whose bounds differ within
	// the first 16 bits. The lookup index buckets rows by that prefix, so a
	// range crossing a /16 boundary could never be found again.
	ErrRangeTooWide = errors.New("iprange: range crosses a /16 boundary")
)

const (
	v6Tag = "v6-"

	hexWidthV4 = 8
	hexWidthV6 = 32

	// First 16 bits of an address, as hex nibbles.
	prefixNibbles = 4
)

// Range is the canonical form of an IP or CIDR target: fixed-width
// hexadecimal bounds plus the normalized textual form. A single IP has
// StartHex == EndHex.
type Range struct {
	StartHex string
	EndHex   string

	// Target is the normalized textual form: the IP for a single address,
	// the canonical CIDR for a range.
	Target string

	IsRange bool
	IsIPv6  bool
}

// Parse converts an IP or CIDR string into its canonical Range. It rejects
// anything that is not a literal address and ranges wider than the /16
// bucket rule allows.
func Parse(target string) (Range, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Range{}, ErrInvalidTarget
	}

	if strings.Contains(target, "/") {
		return parseCIDR(target)
	}

	ip := net.ParseIP(target)
	if ip == nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	h := toHex(ip)
	return Range{
		StartHex: h,
		EndHex:   h,
		Target:   normalizeIP(ip),
		IsIPv6:   ip.To4() == nil,
	}, nil
}

// IPToHex returns the fixed-width hexadecimal form of a single IP.
func IPToHex(ip string) (string, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, ip)
	}
	return toHex(parsed), nil
}

// IsValidIP reports whether s parses as a literal IPv4 or IPv6 address.
func IsValidIP(s string) bool {
	return net.ParseIP(strings.TrimSpace(s)) != nil
}

// PrefixBucket returns the /16 coarse-filter prefix of a hex form: the
// family tag plus the first 16 bits. Rows are only ever compared inside the
// same bucket.
func PrefixBucket(hex string) string {
	if strings.HasPrefix(hex, v6Tag) {
		body := hex[len(v6Tag):]
		if len(body) < prefixNibbles {
			return hex
		}
		return v6Tag + body[:prefixNibbles]
	}
	if len(hex) < prefixNibbles {
		return hex
	}
	return hex[:prefixNibbles]
}

// Covers reports whether the hex form h falls inside [start, end]. Bounds
// are fixed width per family, so plain string comparison is order-correct.
func Covers(h, start, end string) bool {
	return start <= h && h <= end
}

func parseCIDR(target string) (Range, error) {
	_, network, err := net.ParseCIDR(target)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	start := network.IP
	end := make(net.IP, len(start))
	for i := range start {
		end[i] = start[i] | ^network.Mask[i]
	}

	startHex := toHex(start)
	endHex := toHex(end)
	if PrefixBucket(startHex) != PrefixBucket(endHex) {
		return Range{}, fmt.Errorf("%w: %q", ErrRangeTooWide, target)
	}

	ones, bits := network.Mask.Size()
	return Range{
		StartHex: startHex,
		EndHex:   endHex,
		Target:   network.String(),
		IsRange:  ones < bits,
		IsIPv6:   len(start) == net.IPv6len && start.To4() == nil,
	}, nil
}

func toHex(ip net.IP) string {
	if v4 := ip.To4(); v4 != nil {
		return fmt.Sprintf("%02X%02X%02X%02X", v4[0], v4[1], v4[2], v4[3])
	}
	v6 := ip.To16()
	var b strings.Builder
	b.Grow(len(v6Tag) + hexWidthV6)
	b.WriteString(v6Tag)
	for _, octet := range v6 {
		fmt.Fprintf(&b, "%02X", octet)
	}
	return b.String()
}

func normalizeIP(ip net.IP) string {
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
