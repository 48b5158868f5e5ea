package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"ipsweep/internal/domain"
)

const DefaultPingBinary = "ping"

// ExecPinger shells out to the system ping utility with a single echo request.
// Exit status 0 means a reply was seen, 1 means none arrived; anything else is
// a probe error.
type ExecPinger struct {
	Binary  string
	Timeout time.Duration
}

func (p ExecPinger) Probe(ctx context.Context, addr domain.Addr) (bool, error) {
	binary := p.Binary
	if binary == "" {
		binary = DefaultPingBinary
	}

	args := []string{"-c", "1"}
	if p.Timeout > 0 {
		args = append(args, "-W", waitValue(runtime.GOOS, p.Timeout))
	}
	args = append(args, addr.String())

	err := exec.CommandContext(ctx, binary, args...).Run()
	if err == nil {
		return true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("%w: %s %s: %v", ErrProbeFailed, binary, addr, err)
}

// waitValue formats the -W reply wait. Linux iputils ping takes seconds, the
// BSD and macOS ping take milliseconds.
func waitValue(goos string, d time.Duration) string {
	switch goos {
	case "darwin", "freebsd", "netbsd", "dragonfly":
		ms := d.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		return strconv.FormatInt(ms, 10)
	default:
		return strconv.Itoa(secondsCeil(d))
	}
}
