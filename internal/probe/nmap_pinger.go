package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/Ullaakut/nmap/v3"
	"github.com/charmbracelet/log"

	"ipsweep/internal/domain"
)

// NmapPinger runs an nmap host discovery (-sn) against one address.
type NmapPinger struct {
	Binary  string
	Timeout time.Duration
}

func (p NmapPinger) Probe(ctx context.Context, addr domain.Addr) (bool, error) {
	options := []nmap.Option{
		nmap.WithTargets(addr.String()),
		nmap.WithPingScan(),
		nmap.WithDisabledDNSResolution(),
	}
	if p.Timeout > 0 {
		options = append(options, nmap.WithHostTimeout(p.Timeout))
	}
	if p.Binary != "" {
		options = append(options, nmap.WithBinaryPath(p.Binary))
	}

	scanner, err := nmap.NewScanner(ctx, options...)
	if err != nil {
		return false, fmt.Errorf("%w: create nmap scanner: %v", ErrProbeFailed, err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, fmt.Errorf("%w: nmap %s: %v", ErrProbeFailed, addr, err)
	}
	if warnings != nil && len(*warnings) > 0 {
		log.Debug("nmap warnings", "addr", addr.String(), "warnings", *warnings)
	}

	return result.Stats.Hosts.Up > 0, nil
}
