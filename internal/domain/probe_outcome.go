package domain

import "time"

// ProbeStatus is the tri-state result of a single reachability test.
type ProbeStatus uint8

const (
	StatusDown ProbeStatus = iota
	StatusUp
	StatusError
)

func (s ProbeStatus) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusDown:
		return "down"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ProbeOutcome is produced once per address per scan attempt.
type ProbeOutcome struct {
	Addr   Addr
	Status ProbeStatus
	// Reason is only set for StatusError.
	Reason string
	RTT    time.Duration
}

// Reachable reports whether the address answered. Probe errors count as unreachable.
func (o ProbeOutcome) Reachable() bool {
	return o.Status == StatusUp
}
