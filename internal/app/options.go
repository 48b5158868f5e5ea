package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"ipsweep/internal/config"
	"ipsweep/internal/jobs/scanner"
)

type options struct {
	configPath        string
	threads           uint
	probe             string
	timeout           time.Duration
	scheduler         string
	batchSize         uint
	dbDriver          string
	dsn               string
	retainUnreachable bool
	verbose           bool
	showVersion       bool

	set map[string]bool
}

// parseOptions rejects unknown flags and positional arguments. -h returns
// flag.ErrHelp unwrapped.
func parseOptions(args []string, output io.Writer) (options, error) {
	opts := options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("ipsweep", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&opts.configPath, "config", config.DefaultSettingsPath, "Path to the JSON settings file")
	fs.UintVar(&opts.threads, "threads", config.DefaultThreads, "Number of concurrent probes per batch")
	fs.StringVar(&opts.probe, "probe", config.ProbeExec, "Probe implementation: exec, icmp or nmap")
	fs.DurationVar(&opts.timeout, "timeout", 2*time.Second, "Per-address probe timeout")
	fs.StringVar(&opts.scheduler, "scheduler", config.SchedulerBarrier, "Batch scheduler: barrier or pool")
	fs.UintVar(&opts.batchSize, "batch-size", 0, "Addresses per batch (defaults to --threads)")
	fs.StringVar(&opts.dbDriver, "db-driver", config.DriverSQLite, "Database driver: sqlite or postgres")
	fs.StringVar(&opts.dsn, "db", "", "Database DSN or SQLite file path")
	fs.BoolVar(&opts.retainUnreachable, "retain-unreachable", false, "Also store hosts that did not answer")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&opts.showVersion, "version", false, "Print the build version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, err
		}
		return opts, fmt.Errorf("%w: %w", scanner.ErrConfig, err)
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("%w: unexpected argument %q", scanner.ErrConfig, fs.Arg(0))
	}

	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})

	if opts.threads > math.MaxUint32 || opts.batchSize > math.MaxUint32 {
		return opts, fmt.Errorf("%w: --threads and --batch-size must fit in 32 bits", scanner.ErrConfig)
	}

	return opts, nil
}

// apply copies explicitly passed flags over cfg, which already carries file
// and environment values.
func (o options) apply(cfg *config.Config) {
	if o.set["threads"] {
		cfg.Scanner.Threads = uint32(o.threads)
	}
	if o.set["probe"] {
		cfg.Scanner.Probe = strings.ToLower(o.probe)
	}
	if o.set["timeout"] {
		cfg.Scanner.ProbeTimeout = config.TimerFromDuration(o.timeout)
	}
	if o.set["scheduler"] {
		cfg.Scanner.Scheduler = strings.ToLower(o.scheduler)
	}
	if o.set["batch-size"] {
		cfg.Scanner.BatchSize = uint32(o.batchSize)
	}
	if o.set["db-driver"] {
		cfg.Database.Driver = strings.ToLower(o.dbDriver)
	}
	if o.set["db"] {
		cfg.Database.DSN = o.dsn
	}
	if o.set["retain-unreachable"] {
		cfg.Scanner.RetainUnreachable = o.retainUnreachable
	}
}
