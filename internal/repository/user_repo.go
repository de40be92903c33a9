package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ford-at-home/ecko/internal/model"
)

type UserRepository interface {
	UpsertUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
}

type userRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) UserRepository {
	return &userRepo{db: db}
}

// UpsertUser creates the user row on first sight of an identity and refreshes
// the mutable profile fields afterwards. The id column is never rewritten.
func (r *userRepo) UpsertUser(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, email, username, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, username = EXCLUDED.username
		RETURNING id, email, username, is_active, created_at
	`
	if err := r.db.QueryRowContext(ctx, query, u.ID, u.Email, u.Username).Scan(
		&u.ID, &u.Email, &u.Username, &u.IsActive, &u.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	query := `SELECT id, email, username, is_active, created_at FROM users WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	return &u, nil
}

func (r *userRepo) DeleteUser(ctx context.Context, id string) (bool, error) {
	query := `DELETE FROM users WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}
