package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ipsweep/internal/domain"
)

func TestDefaultMatchesStandardTable(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}

	if cfg.Scanner.Threads != DefaultThreads {
		t.Fatalf("default threads = %d, want %d", cfg.Scanner.Threads, DefaultThreads)
	}
	if cfg.BatchSize() != DefaultThreads {
		t.Fatalf("BatchSize returned %d, want %d", cfg.BatchSize(), DefaultThreads)
	}

	reserved, err := cfg.Reserved()
	if err != nil {
		t.Fatalf("Reserved returned error: %v", err)
	}
	if len(reserved) != 16 {
		t.Fatalf("Reserved returned %d ranges, want 16", len(reserved))
	}

	space, err := cfg.ScanSpace()
	if err != nil || space != domain.FullSpace() {
		t.Fatalf("ScanSpace returned %v,%v, want full space", space, err)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error for defaults: %v", err)
	}
}

func TestReadSettingsCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	cfg, err := ReadSettings(path)
	if err != nil {
		t.Fatalf("ReadSettings returned error: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.DSN != "valid_ips.db" {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("settings file was not created: %v", err)
	}
	if cfg.Scanner.Threads != DefaultThreads {
		t.Fatalf("threads = %d, want %d", cfg.Scanner.Threads, DefaultThreads)
	}
}

func TestReadSettingsMergesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"scanner":{"threads":12,"scheduler":"pool"}}`), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	cfg, err := ReadSettings(path)
	if err != nil {
		t.Fatalf("ReadSettings returned error: %v", err)
	}
	if cfg.Scanner.Threads != 12 || cfg.Scanner.Scheduler != SchedulerPool {
		t.Fatalf("file values not applied: %+v", cfg.Scanner)
	}
	if cfg.Scanner.Probe != ProbeExec {
		t.Fatalf("probe = %q, want default %q", cfg.Scanner.Probe, ProbeExec)
	}
	if len(cfg.ReservedRanges) != 16 {
		t.Fatalf("reserved ranges = %d, want defaults", len(cfg.ReservedRanges))
	}
}

func TestReadSettingsRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"scanner":`), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	if _, err := ReadSettings(path); err == nil {
		t.Fatal("expected error for malformed settings file")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("IPSWEEP_DB_DRIVER", "postgres")
	t.Setenv("IPSWEEP_DB_DSN", "host=db user=sweep")
	t.Setenv("IPSWEEP_THREADS", "32")
	t.Setenv("IPSWEEP_METRICS_ADDR", ":9108")
	t.Setenv("IPSWEEP_RETAIN_UNREACHABLE", "true")

	cfg, _ := Default()
	if err := ApplyEnvOverrides(&cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides returned error: %v", err)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.DSN != "host=db user=sweep" {
		t.Fatalf("database overrides not applied: %+v", cfg.Database)
	}
	if cfg.Scanner.Threads != 32 {
		t.Fatalf("threads = %d, want 32", cfg.Scanner.Threads)
	}
	if cfg.Metrics.Addr != ":9108" {
		t.Fatalf("metrics addr = %q, want :9108", cfg.Metrics.Addr)
	}
	if !cfg.Scanner.RetainUnreachable {
		t.Fatal("IPSWEEP_RETAIN_UNREACHABLE not applied")
	}

	t.Setenv("IPSWEEP_THREADS", "many")
	if err := ApplyEnvOverrides(&cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("ApplyEnvOverrides returned %v, want ErrInvalidConfig", err)
	}
}

func TestValidate(t *testing.T) {
	base, _ := Default()

	cases := map[string]func(*Config){
		"zero threads":    func(c *Config) { c.Scanner.Threads = 0 },
		"unknown probe":   func(c *Config) { c.Scanner.Probe = "carrier-pigeon" },
		"unknown sched":   func(c *Config) { c.Scanner.Scheduler = "fifo" },
		"unknown driver":  func(c *Config) { c.Database.Driver = "mysql" },
		"empty dsn":       func(c *Config) { c.Database.DSN = " " },
		"inverted range":  func(c *Config) { c.ReservedRanges = []string{"10.0.0.9-10.0.0.1"} },
		"malformed space": func(c *Config) { c.Scanner.Space = "10.0.0.0/33" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			cfg.ReservedRanges = append([]string(nil), base.ReservedRanges...)
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate returned %v, want ErrInvalidConfig", err)
			}
		})
	}
}
