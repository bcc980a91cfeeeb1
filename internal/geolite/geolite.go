package geolite

import (
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"

	"globalblock/internal/support"
)

// Annotator resolves target IPs to a country name for block listings. It
// is strictly best-effort: without a database on disk every lookup returns
// the empty string.
type Annotator struct {
	mu     sync.RWMutex
	reader *geoip2.Reader
}

// Open loads the GeoLite2 country database named by GB_GEOIP_DB. A missing
// or unreadable file is not an error; listings simply go unannotated.
func Open() *Annotator {
	a := &Annotator{}

	path := support.GetEnv("GB_GEOIP_DB", "data/GeoLite2-Country.mmdb")
	reader, err := geoip2.Open(path)
	if err != nil {
		log.Debug("GeoIP database not loaded, listings will carry no country", "path", path, "error", err)
		return a
	}

	a.reader = reader
	log.Info("GeoIP database loaded", "path", path)
	return a
}

// Country returns the English country name for an IP, or "".
func (a *Annotator) Country(ip string) string {
	if a == nil {
		return ""
	}

	a.mu.RLock()
	reader := a.reader
	a.mu.RUnlock()
	if reader == nil {
		return ""
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	record, err := reader.Country(parsed)
	if err != nil || record == nil {
		return ""
	}
	return record.Country.Names["en"]
}

// Close releases the underlying database handle.
func (a *Annotator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reader != nil {
		_ = a.reader.Close()
		a.reader = nil
	}
}
