package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"ipsweep/internal/domain"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ping")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExecPingerExitCodes(t *testing.T) {
	addr := domain.Addr(134744072)

	t.Run("exit 0 is up", func(t *testing.T) {
		up, err := ExecPinger{Binary: writeScript(t, "exit 0")}.Probe(context.Background(), addr)
		if err != nil || !up {
			t.Fatalf("Probe returned %v,%v, want true,nil", up, err)
		}
	})

	t.Run("exit 1 is down", func(t *testing.T) {
		up, err := ExecPinger{Binary: writeScript(t, "exit 1")}.Probe(context.Background(), addr)
		if err != nil || up {
			t.Fatalf("Probe returned %v,%v, want false,nil", up, err)
		}
	})

	t.Run("exit 2 is an error", func(t *testing.T) {
		up, err := ExecPinger{Binary: writeScript(t, "exit 2")}.Probe(context.Background(), addr)
		if up || !errors.Is(err, ErrProbeFailed) {
			t.Fatalf("Probe returned %v,%v, want false,ErrProbeFailed", up, err)
		}
	})

	t.Run("missing binary is an error", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "no-such-ping")
		up, err := ExecPinger{Binary: missing}.Probe(context.Background(), addr)
		if up || !errors.Is(err, ErrProbeFailed) {
			t.Fatalf("Probe returned %v,%v, want false,ErrProbeFailed", up, err)
		}
	})
}

func TestExecPingerPassesTarget(t *testing.T) {
	out := filepath.Join(t.TempDir(), "args")
	script := writeScript(t, `echo "$@" > `+out)

	pinger := ExecPinger{Binary: script, Timeout: 1500 * time.Millisecond}
	if _, err := pinger.Probe(context.Background(), domain.Addr(16843009)); err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	want := "-c 1 -W " + waitValue(runtime.GOOS, 1500*time.Millisecond) + " 1.1.1.1\n"
	if got := string(data); got != want {
		t.Fatalf("ping invoked with %q, want %q", got, want)
	}
}

func TestWaitValueUnits(t *testing.T) {
	cases := []struct {
		goos string
		d    time.Duration
		want string
	}{
		{"linux", 1500 * time.Millisecond, "2"},
		{"linux", 100 * time.Millisecond, "1"},
		{"darwin", 1500 * time.Millisecond, "1500"},
		{"freebsd", 2 * time.Second, "2000"},
		{"darwin", 0, "1"},
	}
	for _, tc := range cases {
		if got := waitValue(tc.goos, tc.d); got != tc.want {
			t.Fatalf("waitValue(%s, %v) returned %q, want %q", tc.goos, tc.d, got, tc.want)
		}
	}
}

func TestWithTimeoutTurnsHangIntoError(t *testing.T) {
	hang := ProberFunc(func(ctx context.Context, _ domain.Addr) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})

	started := time.Now()
	up, err := WithTimeout(hang, 50*time.Millisecond).Probe(context.Background(), 1)
	if up || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Probe returned %v,%v, want false,DeadlineExceeded", up, err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("timeout took %s", elapsed)
	}
}

func TestWithTimeoutDoesNotTrustLateUp(t *testing.T) {
	late := ProberFunc(func(ctx context.Context, _ domain.Addr) (bool, error) {
		<-ctx.Done()
		return true, nil
	})

	up, err := WithTimeout(late, 20*time.Millisecond).Probe(context.Background(), 1)
	if up || err == nil {
		t.Fatalf("Probe returned %v,%v, want an error after the deadline", up, err)
	}
}

func TestWithTimeoutKillsExecPinger(t *testing.T) {
	pinger := WithTimeout(ExecPinger{Binary: writeScript(t, "exec sleep 5")}, 100*time.Millisecond)

	started := time.Now()
	up, err := pinger.Probe(context.Background(), 1)
	if up || err == nil {
		t.Fatalf("Probe returned %v,%v, want error", up, err)
	}
	if elapsed := time.Since(started); elapsed > 3*time.Second {
		t.Fatalf("hung probe was not killed, took %s", elapsed)
	}
}

func TestOutcome(t *testing.T) {
	cases := []struct {
		name   string
		prober Prober
		want   domain.ProbeStatus
	}{
		{"up", ProberFunc(func(context.Context, domain.Addr) (bool, error) { return true, nil }), domain.StatusUp},
		{"down", ProberFunc(func(context.Context, domain.Addr) (bool, error) { return false, nil }), domain.StatusDown},
		{"error", ProberFunc(func(context.Context, domain.Addr) (bool, error) { return true, errors.New("boom") }), domain.StatusError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := Outcome(context.Background(), tc.prober, 42)
			if outcome.Status != tc.want {
				t.Fatalf("Outcome status = %s, want %s", outcome.Status, tc.want)
			}
			if outcome.Addr != 42 {
				t.Fatalf("Outcome addr = %d, want 42", outcome.Addr)
			}
			if tc.want == domain.StatusError && outcome.Reason != "boom" {
				t.Fatalf("Outcome reason = %q, want boom", outcome.Reason)
			}
		})
	}
}
