// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers: driver
// selection (pure-Go SQLite by default, PostgreSQL or MySQL by DSN), SQL
// tracing, and schema migrations.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

// Options selects and tunes the database connection.
type Options struct {
	Driver  string // sqlite|postgres|mysql
	Path    string // SQLite file path
	DSN     string // postgres/mysql DSN
	Tracing bool   // attach the OpenTelemetry GORM plugin
	Verbose bool   // log every SQL statement
}

// Open connects using opts and applies pool settings and, when asked,
// OpenTelemetry instrumentation.
func Open(opts Options) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(opts.Driver) {
	case "", "sqlite":
		db, err = OpenSQLite(opts.Path)
	case "postgres", "postgresql":
		db, err = gorm.Open(postgres.Open(opts.DSN), gormConfig(opts.Verbose))
	case "mysql":
		db, err = gorm.Open(mysql.Open(opts.DSN), gormConfig(opts.Verbose))
	default:
		return nil, fmt.Errorf("unsupported DB driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	tunePool(db)

	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func gormConfig(verbose bool) *gorm.Config {
	lvl := logger.Warn
	if verbose {
		lvl = logger.Info
	}
	return &gorm.Config{Logger: logger.Default.LogMode(lvl)}
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig(false))
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	tunePool(db)
	return db, nil
}

func tunePool(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

// AutoMigrate creates or updates every table the service uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.InventoryItem{},
		&domain.LifetimeVendor{},
		&domain.DailyVendor{},
		&domain.User{},
		&domain.AuthSession{},
		&domain.PasswordReset{},
		&domain.Idempotency{},
	)
}
