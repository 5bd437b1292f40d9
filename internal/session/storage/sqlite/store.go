// Package sqlite provides SQLite-backed session persistence.
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
	"github.com/ytchou/focus-squad/internal/session/storage"
	"github.com/ytchou/focus-squad/internal/session/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
)

// Store provides SQLite-backed session persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a session SQLite store and applies migrations.
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

// PutSession inserts or replaces a session record.
func (s *Store) PutSession(ctx context.Context, session storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	session.ID = strings.TrimSpace(session.ID)
	session.HostID = strings.TrimSpace(session.HostID)
	session.Status = strings.TrimSpace(session.Status)
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if session.HostID == "" {
		return fmt.Errorf("host id is required")
	}
	if session.Status == "" {
		return fmt.Errorf("status is required")
	}
	if session.StartsAt.IsZero() {
		return fmt.Errorf("starts at is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (
	id,
	host_id,
	title,
	status,
	starts_at,
	created_at,
	updated_at,
	ended_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	status = excluded.status,
	starts_at = excluded.starts_at,
	updated_at = excluded.updated_at,
	ended_at = excluded.ended_at
`,
		session.ID,
		session.HostID,
		session.Title,
		session.Status,
		session.StartsAt.UTC().UnixMilli(),
		session.CreatedAt.UTC().UnixMilli(),
		session.UpdatedAt.UTC().UnixMilli(),
		optionalMilli(session.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession loads one session record by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, host_id, title, status, starts_at, created_at, updated_at, ended_at
FROM sessions
WHERE id = ?
`, strings.TrimSpace(sessionID))
	record, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	return record, nil
}

// ListSessionsForUser lists newest-first sessions the user joined.
func (s *Store) ListSessionsForUser(ctx context.Context, userID string, limit int) ([]storage.SessionRecord, error) {
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
SELECT s.id, s.host_id, s.title, s.status, s.starts_at, s.created_at, s.updated_at, s.ended_at
FROM sessions s
JOIN participants p ON p.session_id = s.id
WHERE p.user_id = ?
ORDER BY s.starts_at DESC, s.id DESC
LIMIT ?
`, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	records := make([]storage.SessionRecord, 0, limit)
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}

// PutParticipant inserts or replaces a participant record.
func (s *Store) PutParticipant(ctx context.Context, participant storage.ParticipantRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	participant.SessionID = strings.TrimSpace(participant.SessionID)
	participant.UserID = strings.TrimSpace(participant.UserID)
	participant.Role = strings.TrimSpace(participant.Role)
	participant.Tier = strings.TrimSpace(participant.Tier)
	if participant.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if participant.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if participant.Role == "" {
		return fmt.Errorf("role is required")
	}
	if participant.Tier == "" {
		return fmt.Errorf("tier is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO participants (
	session_id,
	user_id,
	role,
	joined_at,
	left_at,
	tier,
	tier_changed_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id, user_id) DO UPDATE SET
	role = excluded.role,
	joined_at = excluded.joined_at,
	left_at = excluded.left_at,
	tier = excluded.tier,
	tier_changed_at = excluded.tier_changed_at
`,
		participant.SessionID,
		participant.UserID,
		participant.Role,
		participant.JoinedAt.UTC().UnixMilli(),
		optionalMilli(participant.LeftAt),
		participant.Tier,
		participant.TierChangedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put participant: %w", err)
	}
	return nil
}

// GetParticipant loads one participant record.
func (s *Store) GetParticipant(ctx context.Context, sessionID string, userID string) (storage.ParticipantRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ParticipantRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ParticipantRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT session_id, user_id, role, joined_at, left_at, tier, tier_changed_at
FROM participants
WHERE session_id = ? AND user_id = ?
`, strings.TrimSpace(sessionID), strings.TrimSpace(userID))
	record, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ParticipantRecord{}, storage.ErrNotFound
		}
		return storage.ParticipantRecord{}, fmt.Errorf("get participant: %w", err)
	}
	return record, nil
}

// ListParticipants lists participants for a session in join order.
func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]storage.ParticipantRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT session_id, user_id, role, joined_at, left_at, tier, tier_changed_at
FROM participants
WHERE session_id = ?
ORDER BY joined_at ASC, user_id ASC
`, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var records []storage.ParticipantRecord
	for rows.Next() {
		record, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return records, nil
}

// PutRating persists one partner rating.
func (s *Store) PutRating(ctx context.Context, rating storage.RatingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	rating.SessionID = strings.TrimSpace(rating.SessionID)
	rating.RaterID = strings.TrimSpace(rating.RaterID)
	rating.RateeID = strings.TrimSpace(rating.RateeID)
	if rating.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if rating.RaterID == "" {
		return fmt.Errorf("rater id is required")
	}
	if rating.RateeID == "" {
		return fmt.Errorf("ratee id is required")
	}
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO ratings (session_id, rater_id, ratee_id, score, comment, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		rating.SessionID,
		rating.RaterID,
		rating.RateeID,
		rating.Score,
		rating.Comment,
		rating.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put rating: %w", err)
	}
	return nil
}

// ListRatingsForSession lists ratings recorded for one session.
func (s *Store) ListRatingsForSession(ctx context.Context, sessionID string) ([]storage.RatingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT session_id, rater_id, ratee_id, score, comment, created_at
FROM ratings
WHERE session_id = ?
ORDER BY created_at ASC, rater_id ASC
`, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var records []storage.RatingRecord
	for rows.Next() {
		record, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return records, nil
}

// ListRatingsForUser lists newest-first ratings received by a user.
func (s *Store) ListRatingsForUser(ctx context.Context, userID string, limit int) ([]storage.RatingRecord, error) {
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
SELECT session_id, rater_id, ratee_id, score, comment, created_at
FROM ratings
WHERE ratee_id = ?
ORDER BY created_at DESC
LIMIT ?
`, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	records := make([]storage.RatingRecord, 0, limit)
	for rows.Next() {
		record, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return records, nil
}

// PutInvite persists one invite token.
func (s *Store) PutInvite(ctx context.Context, invite storage.InviteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	invite.Token = strings.TrimSpace(invite.Token)
	invite.SessionID = strings.TrimSpace(invite.SessionID)
	invite.CreatedBy = strings.TrimSpace(invite.CreatedBy)
	if invite.Token == "" {
		return fmt.Errorf("token is required")
	}
	if invite.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if invite.CreatedBy == "" {
		return fmt.Errorf("created by is required")
	}
	if invite.ExpiresAt.IsZero() {
		return fmt.Errorf("expires at is required")
	}
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO invites (token, session_id, created_by, expires_at, used_by, used_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		invite.Token,
		invite.SessionID,
		invite.CreatedBy,
		invite.ExpiresAt.UTC().UnixMilli(),
		invite.UsedBy,
		optionalMilli(invite.UsedAt),
		invite.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put invite: %w", err)
	}
	return nil
}

// GetInvite loads one invite by token.
func (s *Store) GetInvite(ctx context.Context, token string) (storage.InviteRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InviteRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.InviteRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT token, session_id, created_by, expires_at, used_by, used_at, created_at
FROM invites
WHERE token = ?
`, strings.TrimSpace(token))

	var record storage.InviteRecord
	var expiresAt, createdAt int64
	var usedAt sql.NullInt64
	if err := row.Scan(
		&record.Token,
		&record.SessionID,
		&record.CreatedBy,
		&expiresAt,
		&record.UsedBy,
		&usedAt,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.InviteRecord{}, storage.ErrNotFound
		}
		return storage.InviteRecord{}, fmt.Errorf("get invite: %w", err)
	}
	record.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	record.CreatedAt = time.UnixMilli(createdAt).UTC()
	record.UsedAt = optionalTime(usedAt)
	return record, nil
}

// MarkInviteUsed stamps an invite as consumed. It fails with
// ErrAlreadyExists when the invite was consumed before.
func (s *Store) MarkInviteUsed(ctx context.Context, token string, userID string, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE invites
SET used_by = ?, used_at = ?
WHERE token = ? AND used_at IS NULL
`,
		strings.TrimSpace(userID),
		usedAt.UTC().UnixMilli(),
		strings.TrimSpace(token),
	)
	if err != nil {
		return fmt.Errorf("mark invite used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark invite used: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetInvite(ctx, token); errors.Is(err, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return storage.ErrAlreadyExists
	}
	return nil
}

// AppendEvent appends one event with the next per-session sequence.
func (s *Store) AppendEvent(ctx context.Context, event storage.EventRecord) (storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EventRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.EventRecord{}, fmt.Errorf("storage is not configured")
	}

	event.SessionID = strings.TrimSpace(event.SessionID)
	event.Type = strings.TrimSpace(event.Type)
	if event.SessionID == "" {
		return storage.EventRecord{}, fmt.Errorf("session id is required")
	}
	if event.Type == "" {
		return storage.EventRecord{}, fmt.Errorf("event type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.EventRecord{}, fmt.Errorf("begin append event: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(seq), 0) + 1 FROM session_events WHERE session_id = ?
`, event.SessionID)
	if err := row.Scan(&event.Seq); err != nil {
		return storage.EventRecord{}, fmt.Errorf("next event seq: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
INSERT INTO session_events (session_id, seq, type, user_id, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		event.SessionID,
		event.Seq,
		event.Type,
		event.UserID,
		event.Payload,
		event.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return storage.EventRecord{}, fmt.Errorf("append event: %w", err)
	}
	if event.ID, err = result.LastInsertId(); err != nil {
		return storage.EventRecord{}, fmt.Errorf("append event id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.EventRecord{}, fmt.Errorf("commit append event: %w", err)
	}
	return event, nil
}

// ListEvents lists events for a session strictly after afterSeq.
func (s *Store) ListEvents(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]storage.EventRecord, error) {
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
SELECT id, session_id, seq, type, user_id, payload, created_at
FROM session_events
WHERE session_id = ? AND seq > ?
ORDER BY seq ASC
LIMIT ?
`, strings.TrimSpace(sessionID), afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	records := make([]storage.EventRecord, 0, limit)
	for rows.Next() {
		var record storage.EventRecord
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.Seq,
			&record.Type,
			&record.UserID,
			&record.Payload,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (storage.SessionRecord, error) {
	var record storage.SessionRecord
	var startsAt, createdAt, updatedAt int64
	var endedAt sql.NullInt64
	if err := row.Scan(
		&record.ID,
		&record.HostID,
		&record.Title,
		&record.Status,
		&startsAt,
		&createdAt,
		&updatedAt,
		&endedAt,
	); err != nil {
		return storage.SessionRecord{}, err
	}
	record.StartsAt = time.UnixMilli(startsAt).UTC()
	record.CreatedAt = time.UnixMilli(createdAt).UTC()
	record.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	record.EndedAt = optionalTime(endedAt)
	return record, nil
}

func scanParticipant(row rowScanner) (storage.ParticipantRecord, error) {
	var record storage.ParticipantRecord
	var joinedAt, tierChangedAt int64
	var leftAt sql.NullInt64
	if err := row.Scan(
		&record.SessionID,
		&record.UserID,
		&record.Role,
		&joinedAt,
		&leftAt,
		&record.Tier,
		&tierChangedAt,
	); err != nil {
		return storage.ParticipantRecord{}, err
	}
	record.JoinedAt = time.UnixMilli(joinedAt).UTC()
	record.TierChangedAt = time.UnixMilli(tierChangedAt).UTC()
	record.LeftAt = optionalTime(leftAt)
	return record, nil
}

func scanRating(row rowScanner) (storage.RatingRecord, error) {
	var record storage.RatingRecord
	var createdAt int64
	if err := row.Scan(
		&record.SessionID,
		&record.RaterID,
		&record.RateeID,
		&record.Score,
		&record.Comment,
		&createdAt,
	); err != nil {
		return storage.RatingRecord{}, err
	}
	record.CreatedAt = time.UnixMilli(createdAt).UTC()
	return record, nil
}

func optionalMilli(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func optionalTime(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := time.UnixMilli(value.Int64).UTC()
	return &t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed") {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ storage.Store = (*Store)(nil)
