package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brody/brody-back/internal/domain"
)

type PostgresUsersRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresUsersRepository(pool *pgxpool.Pool) *PostgresUsersRepository {
	return &PostgresUsersRepository{pool: pool}
}

const userColumns = `id, email, name, password_hash, is_active, is_verified, created_at, updated_at,
	last_login, preferences, oauth_provider, oauth_id`

func (r *PostgresUsersRepository) CreateUser(ctx context.Context, user *domain.User) error {
	preferences, err := user.PreferencesJSON()
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		user.ID,
		normalizeEmail(user.Email),
		user.Name,
		user.PasswordHash,
		user.IsActive,
		user.IsVerified,
		user.CreatedAt,
		user.UpdatedAt,
		user.LastLogin,
		preferences,
		user.OAuthProvider,
		user.OAuthID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PostgresUsersRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	preferences, err := user.PreferencesJSON()
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	command, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $2,
			name = $3,
			password_hash = $4,
			is_active = $5,
			is_verified = $6,
			updated_at = $7,
			last_login = $8,
			preferences = $9,
			oauth_provider = $10,
			oauth_id = $11
		WHERE id = $1
	`,
		user.ID,
		normalizeEmail(user.Email),
		user.Name,
		user.PasswordHash,
		user.IsActive,
		user.IsVerified,
		user.UpdatedAt,
		user.LastLogin,
		preferences,
		user.OAuthProvider,
		user.OAuthID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresUsersRepository) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.getUser(ctx, "id = $1", userID)
}

func (r *PostgresUsersRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, "email = $1", normalizeEmail(email))
}

func (r *PostgresUsersRepository) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var (
		user        domain.User
		preferences []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
		&preferences,
		&user.OAuthProvider,
		&user.OAuthID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	if len(preferences) > 0 {
		if err := json.Unmarshal(preferences, &user.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return &user, nil
}
