// Package sqlite provides SQLite-backed social persistence.
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
	"github.com/ytchou/focus-squad/internal/social/storage"
	"github.com/ytchou/focus-squad/internal/social/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
)

// Store provides SQLite-backed social persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a social SQLite store and applies migrations.
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

// PutProfile inserts or updates a profile. Username uniqueness across
// users surfaces as ErrAlreadyExists.
func (s *Store) PutProfile(ctx context.Context, record storage.ProfileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.UserID = strings.TrimSpace(record.UserID)
	record.Username = strings.TrimSpace(record.Username)
	if record.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if record.Username == "" {
		return fmt.Errorf("username is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO profiles (user_id, username, display_name, bio, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	username = excluded.username,
	display_name = excluded.display_name,
	bio = excluded.bio,
	updated_at = excluded.updated_at
`,
		record.UserID,
		record.Username,
		record.DisplayName,
		record.Bio,
		record.CreatedAt.UTC().UnixMilli(),
		record.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

// GetProfile loads a profile by user id.
func (s *Store) GetProfile(ctx context.Context, userID string) (storage.ProfileRecord, error) {
	return s.getProfile(ctx, "user_id", strings.TrimSpace(userID))
}

// GetProfileByUsername loads a profile by canonical username.
func (s *Store) GetProfileByUsername(ctx context.Context, username string) (storage.ProfileRecord, error) {
	return s.getProfile(ctx, "username", strings.TrimSpace(username))
}

func (s *Store) getProfile(ctx context.Context, column, value string) (storage.ProfileRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ProfileRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ProfileRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, username, display_name, bio, created_at, updated_at
FROM profiles
WHERE `+column+` = ?
`, value)

	var record storage.ProfileRecord
	var createdAt, updatedAt int64
	if err := row.Scan(
		&record.UserID,
		&record.Username,
		&record.DisplayName,
		&record.Bio,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ProfileRecord{}, storage.ErrNotFound
		}
		return storage.ProfileRecord{}, fmt.Errorf("get profile: %w", err)
	}
	record.CreatedAt = time.UnixMilli(createdAt).UTC()
	record.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return record, nil
}

// PutPartner records a directed partner edge. Re-adding is a no-op.
func (s *Store) PutPartner(ctx context.Context, record storage.PartnerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.OwnerUserID = strings.TrimSpace(record.OwnerUserID)
	record.PartnerUserID = strings.TrimSpace(record.PartnerUserID)
	if record.OwnerUserID == "" {
		return fmt.Errorf("owner user id is required")
	}
	if record.PartnerUserID == "" {
		return fmt.Errorf("partner user id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO partners (owner_user_id, partner_user_id, created_at)
VALUES (?, ?, ?)
`,
		record.OwnerUserID,
		record.PartnerUserID,
		record.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put partner: %w", err)
	}
	return nil
}

// DeletePartner removes a directed partner edge.
func (s *Store) DeletePartner(ctx context.Context, ownerUserID, partnerUserID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM partners WHERE owner_user_id = ? AND partner_user_id = ?
`, strings.TrimSpace(ownerUserID), strings.TrimSpace(partnerUserID))
	if err != nil {
		return fmt.Errorf("delete partner: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete partner: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListPartners lists a user's partner edges oldest-first.
func (s *Store) ListPartners(ctx context.Context, ownerUserID string) ([]storage.PartnerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT owner_user_id, partner_user_id, created_at
FROM partners
WHERE owner_user_id = ?
ORDER BY created_at ASC, partner_user_id ASC
`, strings.TrimSpace(ownerUserID))
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	defer rows.Close()

	var records []storage.PartnerRecord
	for rows.Next() {
		var record storage.PartnerRecord
		var createdAt int64
		if err := rows.Scan(&record.OwnerUserID, &record.PartnerUserID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partners: %w", err)
	}
	return records, nil
}

// AppendCredit appends one ledger line.
func (s *Store) AppendCredit(ctx context.Context, record storage.CreditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.UserID = strings.TrimSpace(record.UserID)
	record.Reason = strings.TrimSpace(record.Reason)
	if record.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if record.Reason == "" {
		return fmt.Errorf("reason is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO credits (user_id, delta, reason, session_id, created_at)
VALUES (?, ?, ?, ?, ?)
`,
		record.UserID,
		record.Delta,
		record.Reason,
		record.SessionID,
		record.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append credit: %w", err)
	}
	return nil
}

// ListCredits lists newest-first ledger lines for a user.
func (s *Store) ListCredits(ctx context.Context, userID string, limit int) ([]storage.CreditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, user_id, delta, reason, session_id, created_at
FROM credits
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	records := make([]storage.CreditRecord, 0, limit)
	for rows.Next() {
		var record storage.CreditRecord
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.Delta,
			&record.Reason,
			&record.SessionID,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credits: %w", err)
	}
	return records, nil
}

// CreditBalance sums a user's ledger.
func (s *Store) CreditBalance(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT COALESCE(SUM(delta), 0) FROM credits WHERE user_id = ?
`, strings.TrimSpace(userID))
	var balance int
	if err := row.Scan(&balance); err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	return balance, nil
}

// PutStreak inserts or replaces a streak record.
func (s *Store) PutStreak(ctx context.Context, record storage.StreakRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.UserID = strings.TrimSpace(record.UserID)
	if record.UserID == "" {
		return fmt.Errorf("user id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO streaks (user_id, current, best, last_day)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	current = excluded.current,
	best = excluded.best,
	last_day = excluded.last_day
`,
		record.UserID,
		record.Current,
		record.Best,
		record.LastDay.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put streak: %w", err)
	}
	return nil
}

// GetStreak loads a user's streak.
func (s *Store) GetStreak(ctx context.Context, userID string) (storage.StreakRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.StreakRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.StreakRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, current, best, last_day FROM streaks WHERE user_id = ?
`, strings.TrimSpace(userID))

	var record storage.StreakRecord
	var lastDay int64
	if err := row.Scan(&record.UserID, &record.Current, &record.Best, &lastDay); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.StreakRecord{}, storage.ErrNotFound
		}
		return storage.StreakRecord{}, fmt.Errorf("get streak: %w", err)
	}
	record.LastDay = time.UnixMilli(lastDay).UTC()
	return record, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed") {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ storage.Store = (*Store)(nil)
