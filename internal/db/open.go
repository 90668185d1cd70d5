package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the shared connection pool handed to stores.
type DB struct {
	*sql.DB
}

// Open opens and pings the backing database. Supported drivers are
// "postgres" and "sqlite3".
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case "postgres", "sqlite3":
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: failed to open %s: %w", driver, err)
	}

	// In-memory SQLite gives every connection its own database. Pin a
	// single connection so the schema survives across goroutines.
	if driver == "sqlite3" && (dsn == ":memory:" || strings.Contains(dsn, "mode=memory")) {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	if driver == "sqlite3" {
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("db: failed to enable foreign keys: %w", err)
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: failed to ping: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}
