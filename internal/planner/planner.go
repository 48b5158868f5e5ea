// Package planner decides which addresses to probe next. It skips reserved
// blocks in a single step instead of walking them address by address.
package planner

import (
	"fmt"
	"sort"

	"ipsweep/internal/domain"
)

// Planner is immutable after New and safe for concurrent use.
type Planner struct {
	reserved []domain.AddressRange
	space    domain.AddressRange
}

// New normalizes the reserved table (sorted by start, overlapping or adjacent
// blocks merged) and bounds planning to space.
func New(reserved []domain.AddressRange, space domain.AddressRange) (*Planner, error) {
	if err := space.Validate(); err != nil {
		return nil, fmt.Errorf("scan space: %w", err)
	}
	for _, r := range reserved {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("reserved range: %w", err)
		}
	}

	return &Planner{
		reserved: normalize(reserved),
		space:    space,
	}, nil
}

func normalize(ranges []domain.AddressRange) []domain.AddressRange {
	if len(ranges) == 0 {
		return nil
	}

	sorted := append([]domain.AddressRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := make([]domain.AddressRange, 0, len(sorted))
	merged = append(merged, sorted[0])
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if uint64(r.Start) <= uint64(last.End)+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Reserved returns a copy of the normalized reserved table.
func (p *Planner) Reserved() []domain.AddressRange {
	return append([]domain.AddressRange(nil), p.reserved...)
}

// Space returns the address interval being swept.
func (p *Planner) Space() domain.AddressRange {
	return p.space
}

// lookup returns the reserved block containing addr.
func (p *Planner) lookup(addr domain.Addr) (domain.AddressRange, bool) {
	lo, hi := 0, len(p.reserved)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case addr < p.reserved[mid].Start:
			hi = mid
		case addr > p.reserved[mid].End:
			lo = mid + 1
		default:
			return p.reserved[mid], true
		}
	}
	return domain.AddressRange{}, false
}

// NextTarget returns cursor itself when it is not reserved, or the first
// address after the reserved block containing it. ok is false when that block
// ends at 255.255.255.255.
func (p *Planner) NextTarget(cursor domain.Addr) (next domain.Addr, ok bool) {
	block, found := p.lookup(cursor)
	if !found {
		return cursor, true
	}
	if block.End == domain.MaxAddr {
		return 0, false
	}
	// Blocks are merged, so End+1 is never reserved.
	return block.End + 1, true
}

// NextBatch plans up to n probe targets starting at cursor. The cursor is
// 64-bit so that "past 255.255.255.255" is representable. It returns the batch
// and the cursor to continue from; an empty batch means the space is exhausted.
func (p *Planner) NextBatch(cursor uint64, n int) ([]domain.Addr, uint64) {
	if cursor < uint64(p.space.Start) {
		cursor = uint64(p.space.Start)
	}
	end := uint64(p.space.End)

	batch := make([]domain.Addr, 0, n)
	for len(batch) < n && cursor <= end {
		target, ok := p.NextTarget(domain.Addr(cursor))
		if !ok || uint64(target) > end {
			return batch, end + 1
		}
		batch = append(batch, target)
		cursor = uint64(target) + 1
	}
	return batch, cursor
}

// Exhausted reports whether cursor has moved past the end of the space.
func (p *Planner) Exhausted(cursor uint64) bool {
	return cursor > uint64(p.space.End)
}
