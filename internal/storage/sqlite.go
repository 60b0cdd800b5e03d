package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jwebster45206/questkeeper/internal/storage/migrations"
	"github.com/jwebster45206/questkeeper/pkg/save"
	"github.com/jwebster45206/questkeeper/pkg/storage"
)

// SQLiteStorage persists save records in a single SQLite table.
type SQLiteStorage struct {
	sqlDB *sql.DB
}

var _ storage.Storage = (*SQLiteStorage)(nil)

// OpenSQLite opens the database at path and applies embedded migrations.
func OpenSQLite(path string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStorage{sqlDB: sqlDB}, nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// Close closes the SQLite handle.
func (s *SQLiteStorage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStorage) SaveRecord(ctx context.Context, id uuid.UUID, rec *save.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := save.Encode(rec)
	if err != nil {
		return err
	}
	savedAt := rec.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO save_records (player_id, version, payload, saved_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(player_id) DO UPDATE SET
    version = excluded.version,
    payload = excluded.payload,
    saved_at = excluded.saved_at
`, id.String(), rec.Version, data, savedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert save record: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadRecord(ctx context.Context, id uuid.UUID) (*save.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload FROM save_records WHERE player_id = ?`, id.String(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get save record: %w", err)
	}
	return save.Decode(payload)
}

func (s *SQLiteStorage) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM save_records WHERE player_id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete save record: %w", err)
	}
	return nil
}

// applyMigrations runs each embedded .sql file at most once, in name order.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := sqlDB.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var count int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, file).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if count > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		up := upSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		tx, err := sqlDB.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upSection returns the text between "-- +migrate Up" and "-- +migrate Down".
// Files without markers are treated as all-up.
func upSection(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx < 0 {
		return content
	}
	rest := content[upIdx+len("-- +migrate Up"):]
	if downIdx := strings.Index(rest, "-- +migrate Down"); downIdx >= 0 {
		rest = rest[:downIdx]
	}
	return rest
}
