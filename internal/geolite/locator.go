// Package geolite annotates reachable hosts with their country using a local
// MaxMind GeoLite2-Country database.
package geolite

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"ipsweep/internal/domain"
)

// Locator is safe for concurrent use. A nil Locator resolves every address to
// the empty string.
type Locator struct {
	mu     sync.RWMutex
	reader *geoip2.Reader
}

func Open(path string) (*Locator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geolite: open %s: %w", path, err)
	}
	return &Locator{reader: reader}, nil
}

// Country returns the English country name for addr, falling back to the ISO
// code, or "" when unknown.
func (l *Locator) Country(addr domain.Addr) string {
	if l == nil {
		return ""
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.reader == nil {
		return ""
	}

	record, err := l.reader.Country(addr.IP())
	if err != nil {
		return ""
	}

	if name := record.Country.Names["en"]; name != "" {
		return name
	}
	return strings.ToUpper(record.Country.IsoCode)
}

func (l *Locator) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reader == nil {
		return nil
	}
	err := l.reader.Close()
	l.reader = nil
	return err
}
