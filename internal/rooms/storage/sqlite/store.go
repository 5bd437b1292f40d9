// Package sqlite provides SQLite-backed room decor persistence.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/ytchou/focus-squad/internal/platform/storage/sqlitemigrate"
	"github.com/ytchou/focus-squad/internal/rooms/storage"
	"github.com/ytchou/focus-squad/internal/rooms/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
)

// Store provides SQLite-backed room decor persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a room SQLite store and applies migrations.
func Open(path string) (*Store, error) {
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

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutOwnership records one item acquisition.
func (s *Store) PutOwnership(ctx context.Context, record storage.OwnershipRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.UserID = strings.TrimSpace(record.UserID)
	record.ItemID = strings.TrimSpace(record.ItemID)
	if record.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if record.ItemID == "" {
		return fmt.Errorf("item id is required")
	}
	if record.AcquiredAt.IsZero() {
		record.AcquiredAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO ownership (user_id, item_id, acquired_at)
VALUES (?, ?, ?)
`,
		record.UserID,
		record.ItemID,
		record.AcquiredAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put ownership: %w", err)
	}
	return nil
}

// ListOwnership lists a user's owned items oldest-first.
func (s *Store) ListOwnership(ctx context.Context, userID string) ([]storage.OwnershipRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_id, item_id, acquired_at
FROM ownership
WHERE user_id = ?
ORDER BY acquired_at ASC, item_id ASC
`, strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("list ownership: %w", err)
	}
	defer rows.Close()

	var records []storage.OwnershipRecord
	for rows.Next() {
		var record storage.OwnershipRecord
		var acquiredAt int64
		if err := rows.Scan(&record.UserID, &record.ItemID, &acquiredAt); err != nil {
			return nil, fmt.Errorf("scan ownership: %w", err)
		}
		record.AcquiredAt = time.UnixMilli(acquiredAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ownership: %w", err)
	}
	return records, nil
}

// HasOwnership reports whether the user owns the item.
func (s *Store) HasOwnership(ctx context.Context, userID, itemID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT 1 FROM ownership WHERE user_id = ? AND item_id = ?
`, strings.TrimSpace(userID), strings.TrimSpace(itemID))
	var found int
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("has ownership: %w", err)
	}
	return true, nil
}

// PutPlacement inserts or moves one placed item.
func (s *Store) PutPlacement(ctx context.Context, record storage.PlacementRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.UserID = strings.TrimSpace(record.UserID)
	record.ItemID = strings.TrimSpace(record.ItemID)
	if record.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if record.ItemID == "" {
		return fmt.Errorf("item id is required")
	}
	if record.PlacedAt.IsZero() {
		record.PlacedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO placements (user_id, item_id, x, y, placed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(user_id, item_id) DO UPDATE SET
	x = excluded.x,
	y = excluded.y,
	placed_at = excluded.placed_at
`,
		record.UserID,
		record.ItemID,
		record.X,
		record.Y,
		record.PlacedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put placement: %w", err)
	}
	return nil
}

// DeletePlacement removes one placed item.
func (s *Store) DeletePlacement(ctx context.Context, userID, itemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM placements WHERE user_id = ? AND item_id = ?
`, strings.TrimSpace(userID), strings.TrimSpace(itemID))
	if err != nil {
		return fmt.Errorf("delete placement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete placement: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListPlacements lists a user's placed items.
func (s *Store) ListPlacements(ctx context.Context, userID string) ([]storage.PlacementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_id, item_id, x, y, placed_at
FROM placements
WHERE user_id = ?
ORDER BY placed_at ASC, item_id ASC
`, strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("list placements: %w", err)
	}
	defer rows.Close()

	var records []storage.PlacementRecord
	for rows.Next() {
		var record storage.PlacementRecord
		var placedAt int64
		if err := rows.Scan(&record.UserID, &record.ItemID, &record.X, &record.Y, &placedAt); err != nil {
			return nil, fmt.Errorf("scan placement: %w", err)
		}
		record.PlacedAt = time.UnixMilli(placedAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate placements: %w", err)
	}
	return records, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed") {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ storage.Store = (*Store)(nil)
