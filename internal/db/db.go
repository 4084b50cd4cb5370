package db

import (
	"fmt"
	"log/slog"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

const driverName = "sqlite"

const playerSchema = `
CREATE TABLE IF NOT EXISTS players (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL
);`

// Connect opens the SQLite database at dbPath and makes sure the schema exists.
// ":memory:" gives a private in-memory database, which tests use.
func Connect(dbPath string) (*sqlx.DB, error) {
	pool, err := sqlx.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if dbPath == ":memory:" {
		// every new connection would see its own empty database
		pool.SetMaxOpenConns(1)
	}
	if err := InitializeDB(pool); err != nil {
		_ = pool.Close()
		return nil, err
	}
	slog.Info("Connected to database", "db.path", dbPath)
	return pool, nil
}

// InitializeDB creates the tables the service needs.
func InitializeDB(pool *sqlx.DB) error {
	if _, err := pool.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := pool.Exec(playerSchema); err != nil {
		return fmt.Errorf("failed to create players table: %w", err)
	}
	return nil
}
