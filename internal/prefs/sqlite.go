package prefs

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mediguard-server/internal/domain"
)

// SQLiteStore keeps the single preference record in an embedded database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the preference database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		hybrid_enabled INTEGER NOT NULL DEFAULT 1,
		preferred_language TEXT NOT NULL DEFAULT 'en',
		cloud_api_key TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the stored record, or the defaults when nothing was saved yet.
func (s *SQLiteStore) Get(ctx context.Context) (*domain.Preferences, error) {
	var hybrid int
	p := &domain.Preferences{}
	err := s.db.QueryRowContext(ctx,
		"SELECT hybrid_enabled, preferred_language, cloud_api_key FROM preferences WHERE id = 1",
	).Scan(&hybrid, &p.PreferredLanguage, &p.CloudAPIKey)
	if err == sql.ErrNoRows {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	p.HybridEnabled = hybrid != 0
	return p, nil
}

// Set writes the record, replacing any previous one.
func (s *SQLiteStore) Set(ctx context.Context, p *domain.Preferences) error {
	hybrid := 0
	if p.HybridEnabled {
		hybrid = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (id, hybrid_enabled, preferred_language, cloud_api_key, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			hybrid_enabled = excluded.hybrid_enabled,
			preferred_language = excluded.preferred_language,
			cloud_api_key = excluded.cloud_api_key,
			updated_at = CURRENT_TIMESTAMP`,
		hybrid, p.PreferredLanguage, p.CloudAPIKey,
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
