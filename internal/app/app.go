package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"ipsweep/internal/app/version"
	"ipsweep/internal/blacklist"
	"ipsweep/internal/config"
	"ipsweep/internal/database"
	"ipsweep/internal/geolite"
	"ipsweep/internal/jobs/scanner"
	"ipsweep/internal/metrics"
	"ipsweep/internal/planner"
	"ipsweep/internal/probe"
	"ipsweep/internal/support"
)

const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitStorage = 3
)

// probeGrace is added on top of the configured timeout so the ping binary can
// report its own timeout before the context kills it.
const probeGrace = time.Second

// ExitCode maps an error returned by Run to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp), errors.Is(err, context.Canceled):
		return ExitOK
	case errors.Is(err, scanner.ErrConfig), errors.Is(err, config.ErrInvalidConfig):
		return ExitConfig
	case errors.Is(err, scanner.ErrStorage):
		return ExitStorage
	default:
		return ExitFailure
	}
}

func Run(ctx context.Context, args []string) error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	opts, err := parseOptions(args, os.Stderr)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Println(version.Get())
		return nil
	}
	if opts.verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log.Debug("Starting", "version", version.Get().BuildVersion, "threads", cfg.Scanner.Threads, "probe", cfg.Scanner.Probe, "scheduler", cfg.Scanner.Scheduler)

	reserved, err := cfg.Reserved()
	if err != nil {
		return fmt.Errorf("%w: %w", scanner.ErrConfig, err)
	}
	space, err := cfg.ScanSpace()
	if err != nil {
		return fmt.Errorf("%w: %w", scanner.ErrConfig, err)
	}

	optOut, err := blacklist.Load(ctx, cfg.ExcludeSources)
	if err != nil {
		return fmt.Errorf("%w: %w", scanner.ErrConfig, err)
	}
	reserved = append(reserved, optOut...)

	plan, err := planner.New(reserved, space)
	if err != nil {
		return fmt.Errorf("%w: %w", scanner.ErrConfig, err)
	}

	dbOpts := []database.Option{database.WithDriver(cfg.Database.Driver, cfg.Database.DSN)}
	if opts.verbose {
		dbOpts = append(dbOpts, database.WithLogger(database.DebugLogger()))
	}
	db, err := database.SetupDB(dbOpts...)
	if err != nil {
		return fmt.Errorf("%w: %w", scanner.ErrStorage, err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("error closing database", "error", err)
		}
	}()
	store := database.NewStore(db)

	prober, err := newProber(cfg)
	if err != nil {
		return err
	}

	sched, closeScheduler := newScheduler(cfg)
	defer closeScheduler()

	orchestratorOpts := []scanner.Option{
		scanner.WithRetainUnreachable(cfg.Scanner.RetainUnreachable),
	}

	if path := strings.TrimSpace(cfg.GeoLite.CountryDB); path != "" {
		locator, err := geolite.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %w", scanner.ErrConfig, err)
		}
		defer locator.Close()
		orchestratorOpts = append(orchestratorOpts, scanner.WithLocator(locator))
	}

	collector := metrics.New()
	orchestratorOpts = append(orchestratorOpts, scanner.WithMetrics(collector))

	orchestrator, err := scanner.NewOrchestrator(plan, prober, sched, store, store, cfg.BatchSize(), orchestratorOpts...)
	if err != nil {
		return err
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if addr := strings.TrimSpace(cfg.Metrics.Addr); addr != "" {
		go func() {
			if err := collector.Serve(sweepCtx, addr); err != nil {
				log.Error("metrics server terminated", "error", err)
			}
		}()
	}

	err = runSweep(sweepCtx, cfg, orchestrator)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		log.Warn("Sweep interrupted, progress is saved up to the last checkpoint")
		return nil
	}
	return err
}

func loadConfig(opts options) (config.Config, error) {
	cfg, err := config.ReadSettings(opts.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("%w: %w", scanner.ErrConfig, err)
	}

	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runSweep(ctx context.Context, cfg config.Config, orchestrator *scanner.Orchestrator) error {
	sweep := func(ctx context.Context) error {
		_, err := orchestrator.Run(ctx)
		return err
	}

	redisURL := strings.TrimSpace(cfg.Redis.URL)
	if redisURL == "" {
		return sweep(ctx)
	}

	client, err := support.NewRedisClient(ctx, redisURL)
	if err != nil {
		return fmt.Errorf("%w: %w", scanner.ErrStorage, err)
	}
	defer func(client *redis.Client) {
		if err := client.Close(); err != nil {
			log.Warn("error closing redis client", "error", err)
		}
	}(client)

	return support.RunExclusive(ctx, client, cfg.Redis.LeaseKey, cfg.LeaseTTL(), sweep)
}

func newProber(cfg config.Config) (probe.Prober, error) {
	timeout := cfg.ProbeTimeout()

	var p probe.Prober
	switch strings.ToLower(cfg.Scanner.Probe) {
	case config.ProbeExec:
		p = probe.ExecPinger{Binary: cfg.Scanner.PingBinary, Timeout: timeout}
	case config.ProbeICMP:
		p = probe.ICMPPinger{Timeout: timeout, Privileged: cfg.Scanner.Privileged}
	case config.ProbeNmap:
		p = probe.NmapPinger{Binary: cfg.Scanner.NmapBinary, Timeout: timeout}
	default:
		return nil, fmt.Errorf("%w: unknown probe %q", scanner.ErrConfig, cfg.Scanner.Probe)
	}

	return probe.WithTimeout(p, timeout+probeGrace), nil
}

func newScheduler(cfg config.Config) (scanner.Scheduler, func()) {
	threads := int(cfg.Scanner.Threads)
	if strings.ToLower(cfg.Scanner.Scheduler) == config.SchedulerPool {
		pool := scanner.NewPoolScheduler(threads)
		return pool, pool.Close
	}
	return scanner.BarrierScheduler{Threads: threads}, func() {}
}
