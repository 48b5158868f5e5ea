package probe

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"ipsweep/internal/domain"
)

// ICMPPinger sends the echo request in-process. Unprivileged mode uses UDP
// ping sockets, which Linux only allows when net.ipv4.ping_group_range
// covers the running group.
type ICMPPinger struct {
	Timeout    time.Duration
	Privileged bool
}

func (p ICMPPinger) Probe(ctx context.Context, addr domain.Addr) (bool, error) {
	pinger, err := probing.NewPinger(addr.String())
	if err != nil {
		return false, fmt.Errorf("%w: resolve %s: %v", ErrProbeFailed, addr, err)
	}

	pinger.Count = 1
	if p.Timeout > 0 {
		pinger.Timeout = p.Timeout
	}
	pinger.SetPrivileged(p.Privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, fmt.Errorf("%w: icmp %s: %v", ErrProbeFailed, addr, err)
	}

	return pinger.Statistics().PacketsRecv > 0, nil
}
