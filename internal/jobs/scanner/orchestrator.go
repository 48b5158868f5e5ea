// Package scanner drives the resumable sweep: plan a batch, probe it, persist
// the results, commit the checkpoint, repeat.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"ipsweep/internal/domain"
	"ipsweep/internal/metrics"
	"ipsweep/internal/planner"
	"ipsweep/internal/probe"
)

var (
	ErrConfig  = errors.New("configuration error")
	ErrStorage = errors.New("storage error")
)

type CheckpointStore interface {
	Checkpoint(ctx context.Context) (domain.Addr, bool, error)
	Commit(ctx context.Context, addr domain.Addr) error
}

type ResultStore interface {
	RecordResults(ctx context.Context, results []domain.HostResult) error
}

type CountryLocator interface {
	Country(addr domain.Addr) string
}

type State int

const (
	StatePlanning State = iota
	StateDispatching
	StateCollecting
	StateCheckpointing
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePlanning:
		return "planning"
	case StateDispatching:
		return "dispatching"
	case StateCollecting:
		return "collecting"
	case StateCheckpointing:
		return "checkpointing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

type Summary struct {
	Resumed     bool
	StartedAt   domain.Addr
	Checkpoint  domain.Addr
	Batches     uint64
	Probed      uint64
	Up          uint64
	Down        uint64
	Errors      uint64
	Duration    time.Duration
	Interrupted bool
}

type Orchestrator struct {
	planner     *planner.Planner
	prober      probe.Prober
	scheduler   Scheduler
	checkpoints CheckpointStore
	results     ResultStore
	batchSize   int

	retainUnreachable bool
	locator           CountryLocator
	metrics           *metrics.Collector
	onState           func(State)
}

type Option func(*Orchestrator)

// WithRetainUnreachable also writes down hosts to the results table.
func WithRetainUnreachable(enabled bool) Option {
	return func(o *Orchestrator) {
		o.retainUnreachable = enabled
	}
}

func WithLocator(l CountryLocator) Option {
	return func(o *Orchestrator) {
		o.locator = l
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) {
		o.metrics = c
	}
}

// WithStateHook is called on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(o *Orchestrator) {
		o.onState = fn
	}
}

func NewOrchestrator(
	p *planner.Planner,
	prober probe.Prober,
	scheduler Scheduler,
	checkpoints CheckpointStore,
	results ResultStore,
	batchSize int,
	opts ...Option,
) (*Orchestrator, error) {
	switch {
	case p == nil:
		return nil, fmt.Errorf("%w: planner is required", ErrConfig)
	case prober == nil:
		return nil, fmt.Errorf("%w: prober is required", ErrConfig)
	case scheduler == nil:
		return nil, fmt.Errorf("%w: scheduler is required", ErrConfig)
	case checkpoints == nil || results == nil:
		return nil, fmt.Errorf("%w: stores are required", ErrConfig)
	case batchSize < 1:
		return nil, fmt.Errorf("%w: batch size must be at least 1, got %d", ErrConfig, batchSize)
	}

	o := &Orchestrator{
		planner:     p,
		prober:      prober,
		scheduler:   scheduler,
		checkpoints: checkpoints,
		results:     results,
		batchSize:   batchSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Orchestrator) setState(s State) {
	if o.onState != nil {
		o.onState(s)
	}
}

// Run sweeps from the stored checkpoint to the end of the scan space. On
// cancellation the in-flight batch is dropped uncommitted and ctx.Err() is
// returned together with the partial summary.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	var summary Summary

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	o.setState(StatePlanning)
	space := o.planner.Space()
	cursor := uint64(space.Start)

	last, ok, err := o.checkpoints.Checkpoint(ctx)
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if ok {
		cursor = uint64(last) + 1
		summary.Resumed = true
		summary.Checkpoint = last
		o.metrics.SetCheckpoint(last)
		log.Info("Resuming sweep", "checkpoint", last.String())
	} else {
		log.Info("Starting sweep", "from", space.Start.String(), "to", space.End.String())
	}
	if cursor < uint64(space.Start) {
		cursor = uint64(space.Start)
	}
	if cursor <= uint64(domain.MaxAddr) {
		summary.StartedAt = domain.Addr(cursor)
	}

	for !o.planner.Exhausted(cursor) {
		batch, next := o.planner.NextBatch(cursor, o.batchSize)
		if len(batch) == 0 {
			break
		}

		o.setState(StateDispatching)
		outcomes := o.scheduler.RunBatch(ctx, batch, o.prober)
		if err := ctx.Err(); err != nil {
			return o.interrupted(summary, started, batch, err)
		}
		if len(outcomes) != len(batch) {
			return summary, fmt.Errorf("scheduler returned %d outcomes for %d addresses", len(outcomes), len(batch))
		}

		o.setState(StateCollecting)
		if err := o.collect(ctx, outcomes, &summary); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return o.interrupted(summary, started, batch, ctxErr)
			}
			return summary, err
		}

		o.setState(StateCheckpointing)
		highest := batch[len(batch)-1]
		if err := o.checkpoints.Commit(ctx, highest); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return o.interrupted(summary, started, batch, ctxErr)
			}
			return summary, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		summary.Batches++
		summary.Checkpoint = highest
		o.metrics.BatchCommitted(highest)
		log.Debug("Batch committed", "first", batch[0].String(), "last", highest.String(), "size", len(batch))

		cursor = next
		o.setState(StatePlanning)
	}

	o.setState(StateDone)
	summary.Duration = time.Since(started)
	log.Info("Sweep complete",
		"batches", summary.Batches,
		"probed", summary.Probed,
		"up", summary.Up,
		"down", summary.Down,
		"errors", summary.Errors,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return summary, nil
}

func (o *Orchestrator) interrupted(summary Summary, started time.Time, batch []domain.Addr, err error) (Summary, error) {
	summary.Interrupted = true
	summary.Duration = time.Since(started)
	log.Warn("Sweep interrupted, in-flight batch dropped",
		"first", batch[0].String(),
		"last", batch[len(batch)-1].String(),
		"checkpoint", summary.Checkpoint.String(),
	)
	return summary, err
}

func (o *Orchestrator) collect(ctx context.Context, outcomes []domain.ProbeOutcome, summary *Summary) error {
	rows := make([]domain.HostResult, 0, len(outcomes))

	for _, outcome := range outcomes {
		summary.Probed++
		o.metrics.ObserveOutcome(outcome)

		switch outcome.Status {
		case domain.StatusUp:
			summary.Up++
			country := ""
			if o.locator != nil {
				country = o.locator.Country(outcome.Addr)
			}
			log.Info("host is up", "addr", outcome.Addr.String(), "rtt", outcome.RTT.Round(time.Millisecond))
			rows = append(rows, domain.HostResult{Addr: int64(outcome.Addr), Reachable: true, Country: country})
		case domain.StatusDown:
			summary.Down++
			log.Info("host is down", "addr", outcome.Addr.String())
			if o.retainUnreachable {
				rows = append(rows, domain.HostResult{Addr: int64(outcome.Addr), Reachable: false})
			}
		default:
			summary.Errors++
			log.Warn("probe failed", "addr", outcome.Addr.String(), "reason", outcome.Reason)
		}
	}

	if err := o.results.RecordResults(ctx, rows); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}
