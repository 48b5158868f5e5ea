package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"

	"ipsweep/internal/database"
	"ipsweep/internal/domain"
	"ipsweep/internal/planner"
)

func setupSweepStore(t *testing.T) *database.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name)

	db, err := database.SetupDB(database.WithDialector(sqlite.Open(dsn)))
	if err != nil {
		t.Fatalf("SetupDB returned error: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close(db)
	})

	return database.NewStore(db)
}

// syntheticPlanner reserves 0-9 and 20-29 inside the space 0-39.
func syntheticPlanner(t *testing.T) *planner.Planner {
	t.Helper()
	p, err := planner.New(
		[]domain.AddressRange{{Start: 0, End: 9}, {Start: 20, End: 29}},
		domain.AddressRange{Start: 0, End: 39},
	)
	if err != nil {
		t.Fatalf("planner.New returned error: %v", err)
	}
	return p
}

func syntheticTargets() []domain.Addr {
	var targets []domain.Addr
	for a := domain.Addr(10); a <= 19; a++ {
		targets = append(targets, a)
	}
	for a := domain.Addr(30); a <= 39; a++ {
		targets = append(targets, a)
	}
	return targets
}

// recordingProber answers with answer and remembers every address it saw.
type recordingProber struct {
	mu     sync.Mutex
	seen   []domain.Addr
	answer func(ctx context.Context, addr domain.Addr) (bool, error)
}

func (r *recordingProber) Probe(ctx context.Context, addr domain.Addr) (bool, error) {
	r.mu.Lock()
	r.seen = append(r.seen, addr)
	r.mu.Unlock()
	return r.answer(ctx, addr)
}

func (r *recordingProber) Seen() []domain.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := append([]domain.Addr(nil), r.seen...)
	sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
	return seen
}

func evenIsUp(_ context.Context, addr domain.Addr) (bool, error) {
	return addr%2 == 0, nil
}

// commitLog wraps a CheckpointStore and records commits in call order.
type commitLog struct {
	CheckpointStore
	mu      sync.Mutex
	commits []domain.Addr
}

func (c *commitLog) Commit(ctx context.Context, addr domain.Addr) error {
	if err := c.CheckpointStore.Commit(ctx, addr); err != nil {
		return err
	}
	c.mu.Lock()
	c.commits = append(c.commits, addr)
	c.mu.Unlock()
	return nil
}

var errDiskFull = errors.New("disk full")

// failingResults fails every RecordResults call after the first okCalls.
type failingResults struct {
	ResultStore
	okCalls int
	calls   int
}

func (f *failingResults) RecordResults(ctx context.Context, results []domain.HostResult) error {
	f.calls++
	if f.calls > f.okCalls {
		return errDiskFull
	}
	return f.ResultStore.RecordResults(ctx, results)
}

func equalAddrs(a, b []domain.Addr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
