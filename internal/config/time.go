package config

import (
	"time"
)

const (
	defaultProbeTimeout = 2 * time.Second
	defaultLeaseTTL     = 45 * time.Second
)

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

func (t Timer) IsZero() bool {
	return t.Days == 0 && t.Hours == 0 && t.Minutes == 0 && t.Seconds == 0
}

// TimerFromDuration rounds d up to whole seconds.
func TimerFromDuration(d time.Duration) Timer {
	secs := uint64((d + time.Second - 1) / time.Second)
	return Timer{
		Days:    uint32(secs / 86400),
		Hours:   uint32(secs % 86400 / 3600),
		Minutes: uint32(secs % 3600 / 60),
		Seconds: uint32(secs % 60),
	}
}

// CalculateBetweenTime converts timer to a duration of at least one second.
func CalculateBetweenTime(timer Timer) time.Duration {
	intervalMs := CalculateMilliseconds(timer)

	minInterval := uint64(1000)
	if intervalMs < minInterval {
		intervalMs = minInterval
	}

	return time.Duration(intervalMs) * time.Millisecond
}

func CalculateMilliseconds(timer Timer) uint64 {
	return uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000
}

// ProbeTimeout is the per-address probe deadline.
func (c Config) ProbeTimeout() time.Duration {
	if c.Scanner.ProbeTimeout.IsZero() {
		return defaultProbeTimeout
	}
	return CalculateBetweenTime(c.Scanner.ProbeTimeout)
}

func (c Config) LeaseTTL() time.Duration {
	if c.Redis.LeaseTTL.IsZero() {
		return defaultLeaseTTL
	}
	return CalculateBetweenTime(c.Redis.LeaseTTL)
}
