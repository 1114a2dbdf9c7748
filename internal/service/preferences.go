package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/logging"
	"github.com/brody/brody-back/internal/repository"
)

// DefaultPreferences returns a fresh copy of the preferences every account
// starts with.
func DefaultPreferences() map[string]any {
	return map[string]any{
		"ai_provider":           "openrouter",
		"default_model":         "meta-llama/llama-3.1-8b-instruct:free",
		"email_check_frequency": 15,
		"notification_settings": map[string]any{
			"email_notifications": true,
			"task_reminders":      true,
			"meeting_alerts":      true,
		},
		"ui_preferences": map[string]any{
			"theme":            "light",
			"dashboard_layout": "default",
			"timezone":         "UTC",
		},
		"integrations": map[string]any{
			"gmail_enabled":    false,
			"outlook_enabled":  false,
			"calendar_enabled": false,
		},
	}
}

type PreferencesService struct {
	users  repository.UsersRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewPreferencesService(users repository.UsersRepository, logger *slog.Logger) *PreferencesService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &PreferencesService{users: users, logger: logger, now: time.Now}
}

// Get returns the defaults overlaid with whatever the user stored.
func (s *PreferencesService) Get(user *domain.User) map[string]any {
	return mergePreferences(DefaultPreferences(), user.Preferences)
}

// Update merges update into the user's preferences. Nested objects are
// merged key by key; every other value replaces the stored one.
func (s *PreferencesService) Update(ctx context.Context, user *domain.User, update map[string]any) (map[string]any, error) {
	for key := range update {
		if !isPreferenceKey(key) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPreferenceKey, key)
		}
	}
	merged := mergePreferences(s.Get(user), update)
	if err := s.save(ctx, user, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Set replaces a single top-level preference.
func (s *PreferencesService) Set(ctx context.Context, user *domain.User, key string, value any) error {
	if !isPreferenceKey(key) {
		return fmt.Errorf("%w: %s", ErrInvalidPreferenceKey, key)
	}
	preferences := s.Get(user)
	preferences[key] = value
	return s.save(ctx, user, preferences)
}

func (s *PreferencesService) Reset(ctx context.Context, user *domain.User) (map[string]any, error) {
	defaults := DefaultPreferences()
	if err := s.save(ctx, user, defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

func (s *PreferencesService) save(ctx context.Context, user *domain.User, preferences map[string]any) error {
	user.Preferences = preferences
	user.UpdatedAt = s.now().UTC()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("save preferences: %w", err)
	}
	s.logger.Debug("preferences saved", logging.Operation("preferences"), logging.UserHash(user.Email))
	return nil
}

func isPreferenceKey(key string) bool {
	_, ok := DefaultPreferences()[key]
	return ok
}

func mergePreferences(base, overlay map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(overlay))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range overlay {
		nested, isMap := value.(map[string]any)
		current, hasMap := merged[key].(map[string]any)
		if isMap && hasMap {
			merged[key] = mergePreferences(current, nested)
			continue
		}
		merged[key] = value
	}
	return merged
}
