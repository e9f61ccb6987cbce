package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/franckalain/grpmnutrition/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrInvalidLog is returned for log records that violate the stored format.
var ErrInvalidLog = errors.New("invalid daily log")

// DB interface defines the methods our database should implement
type DB interface {
	Init(ctx context.Context) error
	Ping(ctx context.Context) error

	RegisterUser(ctx context.Context, username, password string) (bool, error)
	GetUserCredentials(ctx context.Context, username string) (string, bool, error)
	AccountID(ctx context.Context, username string) (string, bool, error)
	VerifyUser(ctx context.Context, username, password string) (bool, error)

	SaveProfile(ctx context.Context, username string, profile models.Profile) error
	LoadProfile(ctx context.Context, username string) (models.Profile, bool, error)

	SaveDailyLog(ctx context.Context, log *models.DailyLog) error
	LoadLogs(ctx context.Context, username string, limit int) ([]models.DailyLog, error)

	DeleteAllData(ctx context.Context) error
	Close() error
}

// SQLiteDB implements the DB interface. Every call holds a shared lock;
// DeleteAllData holds it exclusively.
type SQLiteDB struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteDB opens the database at dbPath and initializes the schema
func NewSQLiteDB(dbPath string, logger *slog.Logger) (*SQLiteDB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLiteDB{db: db, path: dbPath, logger: logger}
	if err := s.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("error applying %q: %w", p, err)
		}
	}
	return db, nil
}

// Init creates the storage structures if absent. Safe to call repeatedly.
func (s *SQLiteDB) Init(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initializeSchema(ctx)
}

func (s *SQLiteDB) initializeSchema(ctx context.Context) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}

	s.logger.Debug("database schema initialized", "path", s.path)
	return nil
}

// Ping checks the database is reachable
func (s *SQLiteDB) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// DeleteAllData irreversibly erases every user, profile and log, then
// re-initializes empty storage. No other call runs while it is in progress.
func (s *SQLiteDB) DeleteAllData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isMemoryPath(s.path) {
		return s.truncate(ctx)
	}

	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database before wipe failed", "error", err)
	}

	var removeErr error
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			removeErr = errors.Join(removeErr, err)
		}
	}

	// Reopen even when removal failed so the store stays usable.
	db, err := open(s.path)
	if err != nil {
		return errors.Join(removeErr, fmt.Errorf("reopen database: %w", err))
	}
	s.db = db

	if removeErr != nil {
		return fmt.Errorf("remove database files: %w", removeErr)
	}
	if err := s.initializeSchema(ctx); err != nil {
		return err
	}

	s.logger.Warn("all data deleted", "path", s.path)
	return nil
}

func (s *SQLiteDB) truncate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin wipe: %w", err)
	}
	for _, table := range []string{"daily_logs", "profiles", "users"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wipe: %w", err)
	}
	s.logger.Warn("all data deleted", "path", s.path)
	return nil
}

func isMemoryPath(p string) bool {
	return p == ":memory:" || strings.HasPrefix(p, "file::memory:") || strings.Contains(p, "mode=memory")
}
