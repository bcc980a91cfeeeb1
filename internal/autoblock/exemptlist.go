package autoblock

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"globalblock/internal/config"
	"globalblock/internal/support"
)

const (
	maxResponseBytes = 10 << 20 // 10 MiB safety cap

	redisKeyPrefix = "globalblock:exemptlist:"
)

var (
	ipv4Regex = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2})?\b`)
	ipv6Regex = regexp.MustCompile(`(?:[0-9a-fA-F]{0,4}:){2,7}[0-9a-fA-F]{0,4}(?:/\d{1,3})?`)
)

// ExemptList holds the externally hosted never-autoblock address lists:
// shared proxies and similar infrastructure that must not be collaterally
// blocked. Entries here are not subject to the /16 rule; a whole /8 of
// provider space is a legitimate exemption.
type ExemptList struct {
	urls    []string
	ttl     time.Duration
	client  *http.Client
	redis   *redis.Client
	clock   support.Clock
	group   singleflight.Group
	fetched atomic.Bool

	snapshot    atomic.Value // []*net.IPNet
	lastRefresh atomic.Value // time.Time
}

// NewExemptList builds the fetcher from policy. redisClient may be nil; it
// only serves as a cross-process cache of the fetched bodies.
func NewExemptList(policy config.Policy, redisClient *redis.Client, clock support.Clock) *ExemptList {
	if clock == nil {
		clock = support.SystemClock()
	}
	l := &ExemptList{
		urls:   append([]string(nil), policy.ExemptListURLs...),
		ttl:    policy.ExemptListTTL,
		client: &http.Client{Timeout: policy.ExemptListTimeout},
		redis:  redisClient,
		clock:  clock,
	}
	l.snapshot.Store([]*net.IPNet(nil))
	l.lastRefresh.Store(time.Time{})
	return l
}

// Usable reports whether exemption data can be consulted: either no lists
// are configured, or at least one fetch has ever succeeded. A refresh is
// attempted first so a recovered source flips the list back to usable.
func (l *ExemptList) Usable(ctx context.Context) bool {
	if len(l.urls) == 0 {
		return true
	}
	l.ensureFresh(ctx)
	return l.fetched.Load()
}

// Contains reports whether ip sits on an exemption list. Fetch failures
// degrade to the last known snapshot; callers that must not act without
// exemption data gate on Usable first.
func (l *ExemptList) Contains(ctx context.Context, ip string) bool {
	if len(l.urls) == 0 {
		return false
	}

	l.ensureFresh(ctx)

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	nets, _ := l.snapshot.Load().([]*net.IPNet)
	for _, n := range nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func (l *ExemptList) ensureFresh(ctx context.Context) {
	last, _ := l.lastRefresh.Load().(time.Time)
	if l.fetched.Load() && l.clock.Now().Sub(last) < l.ttl {
		return
	}
	if err := l.Refresh(ctx); err != nil {
		log.Warn("Autoblock exemption list unavailable, proceeding without it", "error", err)
	}
}

// Refresh fetches every configured source. Sources are fetched
// concurrently; one failing source does not discard the others.
func (l *ExemptList) Refresh(ctx context.Context) error {
	_, err, _ := l.group.Do("refresh", func() (any, error) {
		return nil, l.doRefresh(ctx)
	})
	return err
}

func (l *ExemptList) doRefresh(ctx context.Context) error {
	results := make([][]*net.IPNet, len(l.urls))

	g, gctx := errgroup.WithContext(ctx)
	var failed atomic.Int32
	for i, url := range l.urls {
		g.Go(func() error {
			nets, err := l.fetchSource(gctx, url)
			if err != nil {
				failed.Add(1)
				log.Warn("Exemption list fetch failed", "source", url, "error", err)
				return nil
			}
			results[i] = nets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if int(failed.Load()) == len(l.urls) {
		return fmt.Errorf("all %d exemption sources unavailable", len(l.urls))
	}

	var merged []*net.IPNet
	for _, nets := range results {
		merged = append(merged, nets...)
	}

	l.snapshot.Store(merged)
	l.lastRefresh.Store(l.clock.Now())
	l.fetched.Store(true)

	log.Info("Autoblock exemption list refreshed", "sources", len(l.urls), "entries", len(merged))
	return nil
}

func (l *ExemptList) fetchSource(ctx context.Context, url string) ([]*net.IPNet, error) {
	body, err := l.download(ctx, url)
	if err != nil {
		// Fall back to the shared cache of a previously successful fetch.
		if cached, cacheErr := l.cachedBody(ctx, url); cacheErr == nil && len(cached) > 0 {
			log.Debug("Using cached exemption list", "source", url)
			return parseExemptBody(cached), nil
		}
		return nil, err
	}

	l.storeCachedBody(ctx, url, body)
	return parseExemptBody(body), nil
}

func (l *ExemptList) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (l *ExemptList) cachedBody(ctx context.Context, url string) ([]byte, error) {
	if l.redis == nil {
		return nil, fmt.Errorf("no redis cache configured")
	}
	return l.redis.Get(ctx, redisKeyPrefix+url).Bytes()
}

func (l *ExemptList) storeCachedBody(ctx context.Context, url string, body []byte) {
	if l.redis == nil {
		return
	}
	if err := l.redis.Set(ctx, redisKeyPrefix+url, body, 2*l.ttl).Err(); err != nil {
		log.Debug("Could not cache exemption list", "source", url, "error", err)
	}
}

// parseExemptBody extracts IPs and CIDRs from arbitrary list formats:
// comments and surrounding text are ignored, anything address-shaped is
// taken.
func parseExemptBody(body []byte) []*net.IPNet {
	var nets []*net.IPNet

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := indexComment(line); idx >= 0 {
			line = line[:idx]
		}
		for _, token := range ipv4Regex.FindAllString(line, -1) {
			if n := tokenToNet(token); n != nil {
				nets = append(nets, n)
			}
		}
		for _, token := range ipv6Regex.FindAllString(line, -1) {
			if n := tokenToNet(token); n != nil {
				nets = append(nets, n)
			}
		}
	}
	return nets
}

func indexComment(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] == '#' || line[i] == ';' {
			return i
		}
	}
	return -1
}

func tokenToNet(token string) *net.IPNet {
	if _, network, err := net.ParseCIDR(token); err == nil {
		return network
	}
	ip := net.ParseIP(token)
	if ip == nil {
		return nil
	}
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
}
