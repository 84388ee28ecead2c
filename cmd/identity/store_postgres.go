package identity

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
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "beetrack").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "beetrack",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `id, username, email, password_hash, role, is_active, created_at, updated_at`

// CreateUser inserts a new user row.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" {
		return User{}, invalid(op, "username and email are required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, invalid(op, "password hash is required")
	}
	role := in.Role
	if role == "" {
		role = RoleWorker
	}
	if !role.Valid() {
		return User{}, invalid(op, "unknown role")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	userID, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	users := pgIdent(s.schema, "users")

	row := s.pool.QueryRow(ctx,
		`INSERT INTO `+users+` (
		     id, username, username_norm, email, email_norm,
		     password_hash, role, is_active, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8)
		   RETURNING `+userColumns,
		userID,
		username,
		NormalizeUsername(username),
		email,
		NormalizeEmail(email),
		in.PasswordHash,
		string(role),
		now,
	)

	u, err := scanUser(row)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

// GetUserByID loads a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return s.getOne(ctx, op, "id", id)
}

// GetUserByEmail loads a user by normalized email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	norm := NormalizeEmail(email)
	if norm == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return s.getOne(ctx, op, "email_norm", norm)
}

// GetUserByUsername loads a user by normalized username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.GetUserByUsername"

	norm := NormalizeUsername(username)
	if norm == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return s.getOne(ctx, op, "username_norm", norm)
}

// column is always a package-internal constant, never user input.
func (s *PostgresStore) getOne(ctx context.Context, op, column, value string) (User, error) {
	users := pgIdent(s.schema, "users")

	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+users+` WHERE `+column+` = $1`,
		value,
	)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// ListUsers returns users ordered by creation time.
func (s *PostgresStore) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	limit, offset = clampList(limit, offset)
	users := pgIdent(s.schema, "users")

	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM `+users+` ORDER BY created_at ASC, id ASC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUser applies a partial update in a single statement.
func (s *PostgresStore) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (User, error) {
	const op = "identity.UpdateUser"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if in.Empty() {
		return s.GetUserByID(ctx, id)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	sets := []string{"updated_at = $2"}
	args := []any{id, now}
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		if v == "" {
			return User{}, invalid(op, "username must not be empty")
		}
		add("username = $%d", v)
		add("username_norm = $%d", NormalizeUsername(v))
	}
	if in.Email != nil {
		v := strings.TrimSpace(*in.Email)
		if v == "" {
			return User{}, invalid(op, "email must not be empty")
		}
		add("email = $%d", v)
		add("email_norm = $%d", NormalizeEmail(v))
	}
	if in.PasswordHash != nil {
		add("password_hash = $%d", *in.PasswordHash)
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return User{}, invalid(op, "unknown role")
		}
		add("role = $%d", string(*in.Role))
	}
	if in.IsActive != nil {
		add("is_active = $%d", *in.IsActive)
	}

	users := pgIdent(s.schema, "users")
	row := s.pool.QueryRow(ctx,
		`UPDATE `+users+` SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+userColumns,
		args...,
	)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

// ---- helpers ----

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to heuristic substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_users_username_norm":
		return "username", true
	case "uq_users_email_norm":
		return "email", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		default:
			return "unique", true
		}
	}
}
