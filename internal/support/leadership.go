package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeaseTTL        = 45 * time.Second
	renewalTimeout         = 5 * time.Second
	minRenewalInterval     = time.Second
	defaultRenewalFraction = 3
)

var (
	// ErrLeaseHeld is returned when another process already owns the lease.
	ErrLeaseHeld = errors.New("support: lease held by another process")
	// ErrLeaseLost is returned when renewal failed while run was executing.
	ErrLeaseLost = errors.New("support: lease lost")
)

var (
	leaseCounter atomic.Uint64

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// RunExclusive takes the Redis lease at key and invokes run while holding it.
// The context handed to run is cancelled when the lease cannot be renewed.
// The lease is released once run returns. When another holder owns the key,
// ErrLeaseHeld is returned and run is never called.
func RunExclusive(ctx context.Context, client *redis.Client, key string, ttl time.Duration, run func(context.Context) error) error {
	if run == nil {
		return errors.New("support: lease run function cannot be nil")
	}
	if client == nil {
		return errors.New("support: lease requires a redis client")
	}
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}

	value := generateLeaseID()
	ok, err := client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return fmt.Errorf("support: acquire lease %s: %w", key, err)
	}
	if !ok {
		holder, _ := client.Get(ctx, key).Result()
		log.Warn("lease: already held", "key", key, "holder", holder)
		return ErrLeaseHeld
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	session := &leaseSession{
		client:    client,
		key:       key,
		value:     value,
		ttl:       ttl,
		ctx:       sessionCtx,
		cancel:    cancel,
		stopRenew: make(chan struct{}),
	}
	go session.renewLoop()
	defer session.Close()

	log.Debug("lease: acquired", "key", key)
	err = run(sessionCtx)
	if session.lost.Load() && ctx.Err() == nil {
		return fmt.Errorf("%w: %s: %v", ErrLeaseLost, key, err)
	}
	return err
}

type leaseSession struct {
	client    *redis.Client
	key       string
	value     string
	ttl       time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	stopRenew chan struct{}
	closeOnce sync.Once
	lost      atomic.Bool
}

func (ls *leaseSession) Close() {
	ls.closeOnce.Do(func() {
		close(ls.stopRenew)
		ls.cancel()
		if err := ls.releaseLock(); err != nil {
			log.Warn("lease: release failed", "key", ls.key, "error", err)
			return
		}
		log.Debug("lease: released", "key", ls.key)
	})
}

func renewalInterval(ttl time.Duration) time.Duration {
	interval := ttl / defaultRenewalFraction
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}
	return interval
}

func (ls *leaseSession) renewLoop() {
	ticker := time.NewTicker(renewalInterval(ls.ttl))
	defer ticker.Stop()

	for {
		select {
		case <-ls.stopRenew:
			return
		case <-ls.ctx.Done():
			return
		case <-ticker.C:
			if err := ls.renewLock(); err != nil {
				log.Warn("lease: renewal failed", "key", ls.key, "error", err)
				ls.lost.Store(true)
				ls.cancel()
				return
			}
		}
	}
}

func (ls *leaseSession) renewLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, ls.client, []string{ls.key}, ls.value, ls.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}

	if updated, ok := res.(int64); ok && updated == 0 {
		return errors.New("lease lost")
	}

	return nil
}

func (ls *leaseSession) releaseLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	_, err := releaseScript.Run(ctx, ls.client, []string{ls.key}, ls.value).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func generateLeaseID() string {
	host, _ := os.Hostname()
	counter := leaseCounter.Add(1)
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), counter)
}
