package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/shelfscan/shelfscan/internal/storage/migrations"

	_ "modernc.org/sqlite"
)

var gooseMu sync.Mutex

// SQLite stores sealed values in a local sqlite database.
type SQLite struct {
	db     *sql.DB
	sealer *sealer
}

// OpenSQLite opens (or creates) the database at dsn and applies migrations.
func OpenSQLite(ctx context.Context, dsn string, passphrase []byte) (*SQLite, error) {
	if dsn == "" {
		return nil, errors.New("sqlite storage requires a path")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	salt, err := loadSalt(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	s, err := newSealer(passphrase, salt)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, sealer: s}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func loadSalt(ctx context.Context, db *sql.DB) ([]byte, error) {
	var salt []byte
	err := db.QueryRowContext(ctx, `SELECT salt FROM vault WHERE id = 1`).Scan(&salt)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read vault salt: %w", err)
	}

	salt, err = newSalt()
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO vault (id, salt) VALUES (1, ?)`, salt); err != nil {
		return nil, fmt.Errorf("failed to store vault salt: %w", err)
	}
	return salt, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE key = ?`, key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get secret[%s]: %w", key, err)
	}
	plain, err := s.sealer.open(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to open secret[%s]: %w", key, err)
	}
	return string(plain), nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	sealed, err := s.sealer.seal([]byte(value))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO secrets (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, sealed)
	if err != nil {
		return fmt.Errorf("failed to set secret[%s]: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete secret[%s]: %w", key, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
