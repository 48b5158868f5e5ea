package config

import (
	"fmt"
	"strings"

	"ipsweep/internal/domain"
)

// Reserved parses the reserved_ranges entries. Entries may be CIDR blocks,
// "first-last" pairs or single addresses.
func (c Config) Reserved() ([]domain.AddressRange, error) {
	ranges := make([]domain.AddressRange, 0, len(c.ReservedRanges))
	for _, entry := range c.ReservedRanges {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		r, err := domain.ParseRange(entry)
		if err != nil {
			return nil, fmt.Errorf("reserved range %q: %w", entry, err)
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// ScanSpace is the interval to sweep. An empty value means all of IPv4.
func (c Config) ScanSpace() (domain.AddressRange, error) {
	raw := strings.TrimSpace(c.Scanner.Space)
	if raw == "" {
		return domain.FullSpace(), nil
	}
	r, err := domain.ParseRange(raw)
	if err != nil {
		return domain.AddressRange{}, fmt.Errorf("scan space %q: %w", raw, err)
	}
	return r, nil
}
