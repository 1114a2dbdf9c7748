package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/brody/brody-back/internal/domain"
)

// UsersRepository persists accounts. Emails are unique case-insensitively;
// CreateUser returns ErrConflict for a duplicate.
type UsersRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	UpdateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

type MemoryUsersRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

func NewMemoryUsersRepository() *MemoryUsersRepository {
	return &MemoryUsersRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUsersRepository) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeEmail(user.Email)
	if _, exists := r.byEmail[key]; exists {
		return ErrConflict
	}
	if _, exists := r.byID[user.ID]; exists {
		return ErrConflict
	}
	r.byID[user.ID] = cloneUser(user)
	r.byEmail[key] = user.ID
	return nil
}

func (r *MemoryUsersRepository) UpdateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[user.ID]
	if !ok {
		return ErrNotFound
	}
	newKey := normalizeEmail(user.Email)
	oldKey := normalizeEmail(current.Email)
	if newKey != oldKey {
		if _, taken := r.byEmail[newKey]; taken {
			return ErrConflict
		}
		delete(r.byEmail, oldKey)
		r.byEmail[newKey] = user.ID
	}
	r.byID[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryUsersRepository) GetUserByID(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUsersRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(r.byID[userID]), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clone := *user
	if user.LastLogin != nil {
		lastLogin := *user.LastLogin
		clone.LastLogin = &lastLogin
	}
	clone.Preferences = clonePreferences(user.Preferences)
	return &clone
}

// clonePreferences deep-copies nested maps so callers cannot mutate stored
// state.
func clonePreferences(preferences map[string]any) map[string]any {
	if preferences == nil {
		return nil
	}
	clone := make(map[string]any, len(preferences))
	for key, value := range preferences {
		if nested, ok := value.(map[string]any); ok {
			clone[key] = clonePreferences(nested)
			continue
		}
		clone[key] = value
	}
	return clone
}
