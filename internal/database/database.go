// Package database opens the local SQLite database and applies migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNoRows = sql.ErrNoRows
)

const (
	driverName = "duedate_sqlite3"
)

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			_, err := conn.Exec(`
				PRAGMA busy_timeout       = 5000;
				PRAGMA journal_mode       = WAL;
				PRAGMA journal_size_limit = 200000000;
				PRAGMA synchronous        = NORMAL;
				PRAGMA foreign_keys       = ON;
				PRAGMA temp_store         = MEMORY;
				PRAGMA cache_size         = -16000;
			`, nil)

			return err
		},
	})
}

type Database struct {
	*sql.DB
}

func Open(ctx context.Context, path string) (Database, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return Database{}, fmt.Errorf("opening database failed: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return Database{}, fmt.Errorf("ping database failed: %w", err)
	}

	return Database{db}, nil
}

// IsUniqueViolation reports whether err is a SQLite unique or primary key
// constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (db *Database) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
