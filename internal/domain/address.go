package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
)

// MaxAddr is 255.255.255.255.
const MaxAddr Addr = math.MaxUint32

// Addr is an IPv4 address in 32-bit integer form.
type Addr uint32

func (a Addr) String() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(a))
	return net.IP(b[:]).String()
}

// IP returns the address as a 4-byte net.IP.
func (a Addr) IP() net.IP {
	b := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(b, uint32(a))
	return b
}

// AddrFromIP converts an IPv4 (or IPv4-mapped) address. ok is false for IPv6.
func AddrFromIP(ip net.IP) (Addr, bool) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, false
	}
	return Addr(binary.BigEndian.Uint32(v4)), true
}

func ParseAddr(raw string) (Addr, error) {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return 0, fmt.Errorf("invalid ipv4 address %q", raw)
	}
	addr, ok := AddrFromIP(ip)
	if !ok {
		return 0, fmt.Errorf("not an ipv4 address %q", raw)
	}
	return addr, nil
}

// AddressRange is an inclusive [Start, End] interval of the IPv4 space.
type AddressRange struct {
	Start Addr
	End   Addr
}

var ErrInvertedRange = errors.New("range start is above range end")

func (r AddressRange) Validate() error {
	if r.Start > r.End {
		return fmt.Errorf("%s: %w", r, ErrInvertedRange)
	}
	return nil
}

func (r AddressRange) Contains(a Addr) bool {
	return a >= r.Start && a <= r.End
}

// Size is the number of addresses in the range.
func (r AddressRange) Size() uint64 {
	if r.Start > r.End {
		return 0
	}
	return uint64(r.End) - uint64(r.Start) + 1
}

func (r AddressRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// FullSpace covers 0.0.0.0 through 255.255.255.255.
func FullSpace() AddressRange {
	return AddressRange{Start: 0, End: MaxAddr}
}

// ParseRange accepts CIDR notation (10.0.0.0/8), a dashed pair
// (192.0.2.0-192.0.2.255) or a single address.
func ParseRange(raw string) (AddressRange, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AddressRange{}, errors.New("empty range")
	}

	if strings.Contains(raw, "/") {
		_, ipnet, err := net.ParseCIDR(raw)
		if err != nil {
			return AddressRange{}, fmt.Errorf("parse cidr %q: %w", raw, err)
		}
		base, ok := AddrFromIP(ipnet.IP)
		if !ok {
			return AddressRange{}, fmt.Errorf("not an ipv4 cidr %q", raw)
		}
		ones, bits := ipnet.Mask.Size()
		if bits != 32 {
			return AddressRange{}, fmt.Errorf("not an ipv4 cidr %q", raw)
		}
		hostCount := uint64(1) << uint(bits-ones)
		return AddressRange{Start: base, End: Addr(uint64(base) + hostCount - 1)}, nil
	}

	if startRaw, endRaw, found := strings.Cut(raw, "-"); found {
		start, err := ParseAddr(startRaw)
		if err != nil {
			return AddressRange{}, err
		}
		end, err := ParseAddr(endRaw)
		if err != nil {
			return AddressRange{}, err
		}
		r := AddressRange{Start: start, End: end}
		return r, r.Validate()
	}

	addr, err := ParseAddr(raw)
	if err != nil {
		return AddressRange{}, err
	}
	return AddressRange{Start: addr, End: addr}, nil
}
