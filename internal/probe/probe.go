// Package probe answers a single question per address: does it reply to an
// echo request within the deadline.
package probe

import (
	"context"
	"errors"
	"time"

	"ipsweep/internal/domain"
)

// ErrProbeFailed wraps failures that say nothing about the host, such as a
// missing binary or a killed child process.
var ErrProbeFailed = errors.New("probe failed")

// Prober reports whether addr answered. A non-nil error means the probe could
// not produce an answer and the host must be treated as unreachable.
type Prober interface {
	Probe(ctx context.Context, addr domain.Addr) (bool, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, addr domain.Addr) (bool, error)

func (f ProberFunc) Probe(ctx context.Context, addr domain.Addr) (bool, error) {
	return f(ctx, addr)
}

type timeoutProber struct {
	next    Prober
	timeout time.Duration
}

// WithTimeout bounds every call to p by d. A deadline hit becomes an error
// outcome, never an Up.
func WithTimeout(p Prober, d time.Duration) Prober {
	if d <= 0 {
		return p
	}
	return timeoutProber{next: p, timeout: d}
}

func (t timeoutProber) Probe(ctx context.Context, addr domain.Addr) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	up, err := t.next.Probe(probeCtx, addr)
	if err == nil && probeCtx.Err() != nil && ctx.Err() == nil {
		return false, probeCtx.Err()
	}
	return up, err
}

// Outcome runs p against addr and folds the answer into a ProbeOutcome.
func Outcome(ctx context.Context, p Prober, addr domain.Addr) domain.ProbeOutcome {
	started := time.Now()
	up, err := p.Probe(ctx, addr)
	outcome := domain.ProbeOutcome{Addr: addr, RTT: time.Since(started)}

	switch {
	case err != nil:
		outcome.Status = domain.StatusError
		outcome.Reason = err.Error()
	case up:
		outcome.Status = domain.StatusUp
	default:
		outcome.Status = domain.StatusDown
	}
	return outcome
}

func secondsCeil(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
