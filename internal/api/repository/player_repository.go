package repository

import (
	"context"
	"ctchen222/tictactoe-engine/internal/api/models"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicateUsername is returned by CreatePlayer when the username is
// already stored.
var ErrDuplicateUsername = errors.New("duplicate username")

// PlayerRepository defines the interface for player data operations.
type PlayerRepository interface {
	CreatePlayer(ctx context.Context, player *models.Player, password string) error
	GetPlayerByUsername(ctx context.Context, username string) (*models.Player, error)
}

type sqlitePlayerRepository struct {
	db *sqlx.DB
}

// NewPlayerRepository creates a new SQLite-based PlayerRepository.
func NewPlayerRepository(db *sqlx.DB) PlayerRepository {
	return &sqlitePlayerRepository{db: db}
}

// CreatePlayer hashes the password and inserts a new player. player.ID is
// filled in on success.
func (r *sqlitePlayerRepository) CreatePlayer(ctx context.Context, player *models.Player, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	player.PasswordHash = string(hashedPassword)

	query := `INSERT INTO players (username, password_hash) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, query, player.Username, player.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateUsername, player.Username)
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	if player.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read player id: %w", err)
	}
	return nil
}

// GetPlayerByUsername retrieves a player by username. A missing player is
// reported as (nil, nil).
func (r *sqlitePlayerRepository) GetPlayerByUsername(ctx context.Context, username string) (*models.Player, error) {
	var player models.Player
	query := `SELECT id, username, password_hash FROM players WHERE username = ?`
	err := r.db.GetContext(ctx, &player, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get player by username: %w", err)
	}
	return &player, nil
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var coded interface{ Code() int }
	if !errors.As(err, &coded) {
		return false
	}
	switch coded.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(err.Error(), "UNIQUE")
	}
	return false
}
