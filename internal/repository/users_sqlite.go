package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brody/brody-back/internal/domain"
)

// SQLiteUsersRepository is the development user store used when
// DATABASE_URL points at a sqlite file.
type SQLiteUsersRepository struct {
	db *sql.DB
}

func NewSQLiteUsersRepository(db *sql.DB) *SQLiteUsersRepository {
	return &SQLiteUsersRepository{db: db}
}

func (r *SQLiteUsersRepository) CreateUser(ctx context.Context, user *domain.User) error {
	preferences, err := user.PreferencesJSON()
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`,
		user.ID,
		normalizeEmail(user.Email),
		user.Name,
		user.PasswordHash,
		user.IsActive,
		user.IsVerified,
		formatSQLiteTime(user.CreatedAt),
		formatSQLiteTime(user.UpdatedAt),
		nullableSQLiteTime(user.LastLogin),
		string(preferences),
		user.OAuthProvider,
		user.OAuthID,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *SQLiteUsersRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	preferences, err := user.PreferencesJSON()
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?,
			name = ?,
			password_hash = ?,
			is_active = ?,
			is_verified = ?,
			updated_at = ?,
			last_login = ?,
			preferences = ?,
			oauth_provider = ?,
			oauth_id = ?
		WHERE id = ?
	`,
		normalizeEmail(user.Email),
		user.Name,
		user.PasswordHash,
		user.IsActive,
		user.IsVerified,
		formatSQLiteTime(user.UpdatedAt),
		nullableSQLiteTime(user.LastLogin),
		string(preferences),
		user.OAuthProvider,
		user.OAuthID,
		user.ID,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteUsersRepository) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.getUser(ctx, "id = ?", userID)
}

func (r *SQLiteUsersRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, "email = ?", normalizeEmail(email))
}

func (r *SQLiteUsersRepository) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var (
		user        domain.User
		createdAt   string
		updatedAt   string
		lastLogin   sql.NullString
		preferences string
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsVerified,
		&createdAt,
		&updatedAt,
		&lastLogin,
		&preferences,
		&user.OAuthProvider,
		&user.OAuthID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	if user.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		parsed, err := parseSQLiteTime(lastLogin.String)
		if err != nil {
			return nil, err
		}
		user.LastLogin = &parsed
	}
	if preferences != "" {
		if err := json.Unmarshal([]byte(preferences), &user.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return &user, nil
}
