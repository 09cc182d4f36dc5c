package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"filevault/server/fileman/domain"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// CreateIfAbsent inserts the user unless the email is already registered and
// returns the stored row either way.
func (r *UserRepository) CreateIfAbsent(ctx context.Context, user domain.User) (domain.User, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users(email, full_name, avatar_url)
		VALUES($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`, user.Email, user.FullName, user.AvatarURL)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return r.GetByEmail(ctx, user.Email)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var user domain.User
	err := r.db.QueryRow(ctx, `
		SELECT id, email, full_name, avatar_url, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.FullName, &user.AvatarURL, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
