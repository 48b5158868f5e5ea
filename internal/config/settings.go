package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"ipsweep/internal/support"
)

type Config struct {
	Scanner struct {
		Threads           uint32 `json:"threads"`
		BatchSize         uint32 `json:"batch_size"`
		Scheduler         string `json:"scheduler"`
		Probe             string `json:"probe"`
		ProbeTimeout      Timer  `json:"probe_timeout"`
		RetainUnreachable bool   `json:"retain_unreachable"`
		PingBinary        string `json:"ping_binary"`
		NmapBinary        string `json:"nmap_binary"`
		Privileged        bool   `json:"privileged"`
		Space             string `json:"space"`
	} `json:"scanner"`

	Database struct {
		Driver string `json:"driver"`
		DSN    string `json:"dsn"`
	} `json:"database"`

	Redis struct {
		URL      string `json:"url"`
		LeaseKey string `json:"lease_key"`
		LeaseTTL Timer  `json:"lease_ttl"`
	} `json:"redis"`

	GeoLite struct {
		CountryDB string `json:"country_db"`
	} `json:"geolite"`

	Metrics struct {
		Addr string `json:"addr"`
	} `json:"metrics"`

	ReservedRanges []string `json:"reserved_ranges"`
	ExcludeSources []string `json:"exclude_sources"`
}

const (
	DefaultSettingsPath = "data/settings.json"
	DefaultThreads      = 5

	SchedulerBarrier = "barrier"
	SchedulerPool    = "pool"

	ProbeExec = "exec"
	ProbeICMP = "icmp"
	ProbeNmap = "nmap"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid configuration")

//go:embed default_settings.json
var defaultConfig []byte

// Default returns the embedded default configuration.
func Default() (Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadSettings loads the settings file at path, writing the embedded defaults
// there first if it does not exist yet. Environment overrides are applied on
// top.
func ReadSettings(path string) (Config, error) {
	if path == "" {
		path = DefaultSettingsPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read settings file: %w", err)
		}

		log.Warn("Settings file not found, creating with default configuration", "path", path)
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return Config{}, fmt.Errorf("create settings directory: %w", err)
			}
		}
		if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
			return Config{}, fmt.Errorf("write default settings file: %w", err)
		}
		data = defaultConfig
	}

	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse settings file %s: %w", path, err)
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	log.Debug("Settings file loaded successfully", "path", path)
	return cfg, nil
}

// ApplyEnvOverrides copies IPSWEEP_* environment variables into cfg.
func ApplyEnvOverrides(cfg *Config) error {
	cfg.Database.Driver = support.GetEnv("IPSWEEP_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = support.GetEnv("IPSWEEP_DB_DSN", cfg.Database.DSN)
	cfg.Redis.URL = support.GetEnv("IPSWEEP_REDIS_URL", cfg.Redis.URL)
	cfg.GeoLite.CountryDB = support.GetEnv("IPSWEEP_GEOLITE_COUNTRY_DB", cfg.GeoLite.CountryDB)
	cfg.Metrics.Addr = support.GetEnv("IPSWEEP_METRICS_ADDR", cfg.Metrics.Addr)
	cfg.Scanner.RetainUnreachable = support.GetEnvBool("IPSWEEP_RETAIN_UNREACHABLE", cfg.Scanner.RetainUnreachable)

	if raw := support.GetEnv("IPSWEEP_THREADS", ""); raw != "" {
		threads, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: IPSWEEP_THREADS=%q: %v", ErrInvalidConfig, raw, err)
		}
		cfg.Scanner.Threads = uint32(threads)
	}
	return nil
}

// Validate checks the values that would otherwise fail deep inside a sweep.
func (c Config) Validate() error {
	var errs []error

	if c.Scanner.Threads == 0 {
		errs = append(errs, errors.New("scanner.threads must be at least 1"))
	}

	switch strings.ToLower(c.Scanner.Scheduler) {
	case SchedulerBarrier, SchedulerPool:
	default:
		errs = append(errs, fmt.Errorf("unknown scheduler %q", c.Scanner.Scheduler))
	}

	switch strings.ToLower(c.Scanner.Probe) {
	case ProbeExec, ProbeICMP, ProbeNmap:
	default:
		errs = append(errs, fmt.Errorf("unknown probe %q", c.Scanner.Probe))
	}

	switch strings.ToLower(c.Database.Driver) {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn must not be empty"))
	}

	if _, err := c.Reserved(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ScanSpace(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// BatchSize is the number of addresses planned per batch. It defaults to the
// thread count.
func (c Config) BatchSize() int {
	if c.Scanner.BatchSize > 0 {
		return int(c.Scanner.BatchSize)
	}
	return int(c.Scanner.Threads)
}
