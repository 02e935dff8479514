// Package db wraps the MySQL connection pool backing /register and /login,
// and the user service built on it. Grounded on
// original_source/src/util/include/mysql_conn_pool.h's pooled-connection
// discipline, reimplemented with database/sql's own pool (MaxOpenConns/
// MaxIdleConns/ConnMaxLifetime) standing in for the original's hand-rolled
// queue+condvar, and go-sql-driver/mysql as the driver.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/badu/webserver/internal/config"
)

// Pool is a thin wrapper around *sql.DB, opened once at startup and shared
// read-only by every SubReactor goroutine (database/sql is itself
// safe for concurrent use).
type Pool struct {
	db *sql.DB
}

// Open validates cfg.DSN, applies pool sizing, and pings the server once so
// misconfiguration fails fast at startup (spec.md §7 "fail fast").
func Open(cfg config.DB) (*Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db: dsn must be set")
	}
	sqlDB, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return &Pool{db: sqlDB}, nil
}

// Close releases the pool's connections.
func (p *Pool) Close() error {
	return p.db.Close()
}
