package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/franckalain/grpmnutrition/internal/auth"
	"github.com/google/uuid"
)

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// RegisterUser stores a new account. It returns false, without error, when
// the username is already taken. The uniqueness check and insert are one statement.
func (s *SQLiteDB) RegisterUser(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, account_id, password_hash, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO NOTHING
	`, username, uuid.New().String(), hash, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	return n == 1, nil
}

// GetUserCredentials returns the stored password hash for username.
func (s *SQLiteDB) GetUserCredentials(ctx context.Context, username string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select user: %w", err)
	}
	return hash, true, nil
}

// AccountID returns the identifier assigned to username when it registered.
// A username registered again after a wipe gets a new one.
func (s *SQLiteDB) AccountID(ctx context.Context, username string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRowContext(ctx, `SELECT account_id FROM users WHERE username = ?`, username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select account: %w", err)
	}
	return id, true, nil
}

// VerifyUser checks a login attempt against the stored hash. Unknown users
// still pay for one hash comparison.
func (s *SQLiteDB) VerifyUser(ctx context.Context, username, password string) (bool, error) {
	hash, ok, err := s.GetUserCredentials(ctx, username)
	if err != nil {
		return false, err
	}
	if !ok {
		dummyHashOnce.Do(func() {
			dummyHash, _ = auth.HashPassword("grpm-unknown-user")
		})
		auth.CheckPassword(dummyHash, password)
		return false, nil
	}
	return auth.CheckPassword(hash, password), nil
}
