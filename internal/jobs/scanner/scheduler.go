package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"ipsweep/internal/domain"
	"ipsweep/internal/probe"
)

// Scheduler probes every address of a batch concurrently and returns only
// once all of them have an outcome. outcomes[i] always belongs to addrs[i].
type Scheduler interface {
	RunBatch(ctx context.Context, addrs []domain.Addr, prober probe.Prober) []domain.ProbeOutcome
}

// probeOne never panics; a panicking prober yields an error outcome for that
// address only.
func probeOne(ctx context.Context, prober probe.Prober, addr domain.Addr) (outcome domain.ProbeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("probe panicked", "addr", addr.String(), "panic", r)
			outcome = domain.ProbeOutcome{
				Addr:   addr,
				Status: domain.StatusError,
				Reason: fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return probe.Outcome(ctx, prober, addr)
}

// BarrierScheduler starts one goroutine per address, at most Threads at a
// time, and joins them all before returning.
type BarrierScheduler struct {
	Threads int
}

func (s BarrierScheduler) RunBatch(ctx context.Context, addrs []domain.Addr, prober probe.Prober) []domain.ProbeOutcome {
	outcomes := make([]domain.ProbeOutcome, len(addrs))

	var g errgroup.Group
	if s.Threads > 0 {
		g.SetLimit(s.Threads)
	}

	for i, addr := range addrs {
		g.Go(func() error {
			outcomes[i] = probeOne(ctx, prober, addr)
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

type poolJob struct {
	ctx    context.Context
	prober probe.Prober
	addr   domain.Addr
	slot   *domain.ProbeOutcome
	done   chan<- struct{}
}

// PoolScheduler keeps a fixed set of workers alive across batches and feeds
// them through a shared queue. RunBatch still waits for the whole batch.
type PoolScheduler struct {
	jobs      chan poolJob
	wg        sync.WaitGroup
	closeOnce sync.Once
	workers   int
}

func NewPoolScheduler(workers int) *PoolScheduler {
	if workers < 1 {
		workers = 1
	}

	p := &PoolScheduler{
		jobs:    make(chan poolJob, workers),
		workers: workers,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	log.Debug("Probe workers started", "workers", workers)
	return p
}

func (p *PoolScheduler) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		*job.slot = probeOne(job.ctx, job.prober, job.addr)
		job.done <- struct{}{}
	}
}

// RunBatch must not be called after Close.
func (p *PoolScheduler) RunBatch(ctx context.Context, addrs []domain.Addr, prober probe.Prober) []domain.ProbeOutcome {
	outcomes := make([]domain.ProbeOutcome, len(addrs))
	done := make(chan struct{}, len(addrs))

	go func() {
		for i, addr := range addrs {
			p.jobs <- poolJob{ctx: ctx, prober: prober, addr: addr, slot: &outcomes[i], done: done}
		}
	}()

	for range addrs {
		<-done
	}
	return outcomes
}

func (p *PoolScheduler) Workers() int {
	return p.workers
}

// Close stops the workers after the queue drains.
func (p *PoolScheduler) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
		p.wg.Wait()
		log.Debug("Probe workers stopped", "workers", p.workers)
	})
}
