package database

import (
	"fmt"
	"strings"
	"time"

	"ipsweep/internal/domain"
	"ipsweep/internal/support"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultSQLitePath = "valid_ips.db"
)

type Config struct {
	Dialector  gorm.Dialector
	Logger     logger.Interface
	Migrations []any
	sqlite     bool
}

type Option func(*Config)

// SetupDB opens the sweep database and creates the checked and ip tables.
// Without options it opens the local SQLite file.
func SetupDB(opts ...Option) (*gorm.DB, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Dialector == nil {
		return nil, fmt.Errorf("database: no dialector provided")
	}

	gormCfg := &gorm.Config{}
	if cfg.Logger != nil {
		gormCfg.Logger = cfg.Logger
	}
	db, err := gorm.Open(cfg.Dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("database: open connection: %w", err)
	}
	configureConnectionPool(db, cfg.sqlite)

	if len(cfg.Migrations) > 0 {
		if err := db.AutoMigrate(cfg.Migrations...); err != nil {
			return nil, fmt.Errorf("database: auto migrate: %w", err)
		}
		log.Debug("Database migration completed.")
	}

	return db, nil
}

func defaultConfig() Config {
	return Config{
		Dialector:  sqlite.Open(DefaultSQLitePath),
		Logger:     silentLogger(),
		Migrations: defaultMigrations(),
		sqlite:     true,
	}
}

func silentLogger() logger.Interface {
	return logger.New(
		log.Default(),
		logger.Config{LogLevel: logger.Silent},
	)
}

// DebugLogger reports slow statements and errors through the application
// logger.
func DebugLogger() logger.Interface {
	return logger.New(
		log.Default(),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

func defaultMigrations() []any {
	return []any{
		domain.CheckedAddress{},
		domain.HostResult{},
	}
}

// WithDriver selects the dialector for driver ("sqlite" or "postgres").
func WithDriver(driver, dsn string) Option {
	return func(cfg *Config) {
		switch strings.ToLower(driver) {
		case DriverPostgres:
			cfg.Dialector = postgres.Open(dsn)
			cfg.sqlite = false
		default:
			if dsn == "" {
				dsn = DefaultSQLitePath
			}
			cfg.Dialector = sqlite.Open(dsn)
			cfg.sqlite = true
		}
	}
}

func WithDialector(d gorm.Dialector) Option {
	return func(cfg *Config) {
		cfg.Dialector = d
		cfg.sqlite = d != nil && d.Name() == "sqlite"
	}
}

func WithLogger(l logger.Interface) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

func configureConnectionPool(db *gorm.DB, sqliteFile bool) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Error("database: get sql.DB", "error", err)
		return
	}

	// SQLite allows a single writer; more connections only produce SQLITE_BUSY.
	if sqliteFile {
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
			log.Warn("database: set busy timeout", "error", err)
		}
		return
	}

	maxOpen := support.GetEnvInt("DB_MAX_OPEN_CONNS", 8)
	maxIdle := support.GetEnvInt("DB_MAX_IDLE_CONNS", maxOpen)
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	connLifetimeSeconds := support.GetEnvInt("DB_CONN_MAX_LIFETIME", 300)
	connIdleSeconds := support.GetEnvInt("DB_CONN_MAX_IDLE_TIME", 60)

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if connLifetimeSeconds > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(connLifetimeSeconds) * time.Second)
	}
	if connIdleSeconds > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(connIdleSeconds) * time.Second)
	}
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
