// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver, dev/test) and Postgres (production), plus schema
// migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	postgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/mechanicondemand/go-backend/internal/config"
	"github.com/mechanicondemand/go-backend/internal/domain"
)

// Open opens the configured database backend and applies connection-pool
// settings. SQLite additionally gets the usual PRAGMAs for a single-node
// deployment.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	default:
		// Fail early if parent directory does not exist (instead of a cryptic
		// sqlite "out of memory (14)").
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if _, serr := os.Stat(dir); serr != nil {
				return nil, serr
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
	}
	if err != nil {
		return nil, err
	}

	if cfg.Driver != "postgres" {
		db.Exec("PRAGMA journal_mode=WAL;")
		db.Exec("PRAGMA synchronous=NORMAL;")
		db.Exec("PRAGMA foreign_keys=ON;")
		db.Exec("PRAGMA busy_timeout=5000;")
	}

	if sqlDB, derr := db.DB(); derr == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	// Trace queries alongside HTTP spans; metrics come from the HTTP layer.
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Shop{},
		&domain.Vehicle{},
		&domain.ServiceRequest{},
		&domain.StatusHistory{},
		&domain.Notification{},
		&domain.Payment{},
	)
}
