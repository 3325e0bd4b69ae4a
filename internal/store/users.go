package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// User mirrors one users row.
type User struct {
	ID           pgtype.UUID
	Email        string
	PasswordHash string
	Name         string
	Role         string
	Blocked      bool
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

const userColumns = `id, email, password_hash, name, role, blocked, created_at, updated_at`

// GetUserByID fetches a user by identifier.
func (s *Store) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Blocked, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Blocked, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts a user and returns its identifier.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name, role string) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO users (email, password_hash, name, role)
VALUES ($1, $2, $3, $4) RETURNING id`, email, passwordHash, name, role).Scan(&id)
	return id, err
}

// ListUsers returns users for the admin panel, newest first.
func (s *Store) ListUsers(ctx context.Context, limit, offset int32) ([]User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users
ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Blocked, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CountUsers counts all users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total)
	return total, err
}

// SetUserRole updates a user's role.
func (s *Store) SetUserRole(ctx context.Context, id pgtype.UUID, role string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetUserBlocked toggles a user's blocked flag.
func (s *Store) SetUserBlocked(ctx context.Context, id pgtype.UUID, blocked bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET blocked = $2, updated_at = now() WHERE id = $1`, id, blocked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
