// Package database wraps a PostgreSQL connection pool for repositories and
// services that persist saga, timer, and service state. Modeled on
// pkg/migrator's database/sql + pgx/v5/stdlib driver idiom so the pool is
// usable with sqlc-generated Queriers as well as plain database/sql code.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ghuser/relay/pkg/logger"
)

// Database wraps a *sql.DB connection pool.
type Database struct {
	db  *sql.DB
	log logger.Logger
}

// NewPool opens a connection pool against dbURL and verifies connectivity.
func NewPool(ctx context.Context, dbURL string, log logger.Logger) (*Database, error) {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Database{db: db, log: log}, nil
}

// DB returns the underlying *sql.DB for read-only queries and
// sqlc-generated Queriers that accept a db.DBTX.
func (d *Database) DB() *sql.DB { return d.db }

// Ping verifies the database is reachable, satisfying httpx.HealthChecker.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (d *Database) Close() error { return d.db.Close() }

// WithTx runs fn inside a transaction, committing on success and rolling
// back if fn returns an error or panics.
func (d *Database) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				d.log.Error("rollback failed", "error", rbErr, "original_error", err)
			}
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
