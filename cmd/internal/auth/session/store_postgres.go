package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zrdt80/beetrack/cmd/identity/ids"
)

// PostgresStore implements Store using PostgreSQL (beetrack.user_sessions).
//
// The pool is owned by the caller.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

var schemaIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewPostgresStore creates a Postgres-backed session store in the given schema
// (empty means "beetrack").
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "beetrack"
	}
	if !schemaIdentRe.MatchString(schema) {
		return nil, fmt.Errorf("session: invalid schema identifier")
	}
	return &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{schema, "user_sessions"}.Sanitize(),
	}, nil
}

const sessionColumns = `id, user_id, refresh_token_hash, created_at, last_activity,
	expires_at, is_valid, user_agent, ip_address, device_info`

// Create inserts a new session row.
func (s *PostgresStore) Create(ctx context.Context, in NewSession) (Session, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Session{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO `+s.table+` (
			id, user_id, refresh_token_hash,
			created_at, last_activity, expires_at, is_valid,
			user_agent, ip_address, device_info
		) VALUES (
			$1, $2, $3,
			$4, $4, $5, TRUE,
			$6, $7, $8
		)
		RETURNING `+sessionColumns,
		id, in.UserID, in.RefreshTokenHash,
		now, in.ExpiresAt,
		nullIfEmpty(in.UserAgent), nullIfEmpty(in.IPAddress),
		nullIfEmpty(defaultDeviceInfo(in.DeviceInfo, in.UserAgent)),
	)

	out, err := scanSession(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Session{}, ErrRefreshTokenCollision
		}
		return Session{}, err
	}
	return out, nil
}

// FindActiveByRefreshHash loads a usable session by refresh token hash.
func (s *PostgresStore) FindActiveByRefreshHash(ctx context.Context, hash string, now time.Time) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM `+s.table+`
		WHERE refresh_token_hash = $1
		  AND is_valid
		  AND expires_at > $2
	`, hash, now)

	out, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

// GetByID loads a session row by ID.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM `+s.table+` WHERE id = $1`, id)

	out, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

// Touch updates last_activity for a session.
func (s *PostgresStore) Touch(ctx context.Context, id string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE `+s.table+` SET last_activity = $2 WHERE id = $1`, id, now)
	return err
}

// Invalidate marks a session invalid (idempotent).
func (s *PostgresStore) Invalidate(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE `+s.table+` SET is_valid = FALSE WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// InvalidateAllForUser invalidates the user's valid sessions in one statement.
func (s *PostgresStore) InvalidateAllForUser(ctx context.Context, userID, exceptID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.table+`
		SET is_valid = FALSE
		WHERE user_id = $1
		  AND is_valid
		  AND ($2 = '' OR id <> $2)
	`, userID, exceptID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListValidForUser returns every valid session of the user, newest first.
func (s *PostgresStore) ListValidForUser(ctx context.Context, userID string) ([]Session, error) {
	return s.query(ctx, `
		SELECT `+sessionColumns+`
		FROM `+s.table+`
		WHERE user_id = $1 AND is_valid
		ORDER BY created_at DESC, id DESC
	`, userID)
}

// RecentValidForUser returns the newest limit valid sessions.
func (s *PostgresStore) RecentValidForUser(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 {
		return s.ListValidForUser(ctx, userID)
	}
	return s.query(ctx, `
		SELECT `+sessionColumns+`
		FROM `+s.table+`
		WHERE user_id = $1 AND is_valid
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]Session, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		out            Session
		ua, ip, device *string
	)
	err := row.Scan(
		&out.ID,
		&out.UserID,
		&out.RefreshTokenHash,
		&out.CreatedAt,
		&out.LastActivity,
		&out.ExpiresAt,
		&out.IsValid,
		&ua,
		&ip,
		&device,
	)
	if err != nil {
		return Session{}, err
	}
	out.UserAgent = deref(ua)
	out.IPAddress = deref(ip)
	out.DeviceInfo = deref(device)
	return out, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
