package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brody/brody-back/internal/auth"
	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/logging"
	"github.com/brody/brody-back/internal/repository"
)

const minPasswordLength = 8

type AuthDependencies struct {
	Users    repository.UsersRepository
	Sessions repository.SessionStore
	Tokens   *auth.TokenIssuer
	Logger   *slog.Logger
	Now      func() time.Time
}

type AuthService struct {
	users    repository.UsersRepository
	sessions repository.SessionStore
	tokens   *auth.TokenIssuer
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuthService(deps AuthDependencies) *AuthService {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &AuthService{
		users:    deps.Users,
		sessions: deps.Sessions,
		tokens:   deps.Tokens,
		logger:   deps.Logger,
		now:      deps.Now,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// SessionMeta describes the client that opened a session.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

type AuthResult struct {
	User  *domain.User
	Token auth.TokenPair
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput, meta SessionMeta) (AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return AuthResult{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return AuthResult{}, fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if len(input.Password) < minPasswordLength {
		return AuthResult{}, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLogin:    &now,
		Preferences:  DefaultPreferences(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.openSession(ctx, user, meta)
	if err != nil {
		return AuthResult{}, err
	}
	s.logger.Info("user registered", logging.Operation("register"), logging.UserHash(email))
	return AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string, meta SessionMeta) (AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AuthResult{}, auth.ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		s.logger.Warn("login rejected", logging.Operation("login"), logging.UserHash(email))
		return AuthResult{}, err
	}
	if !user.IsActive {
		return AuthResult{}, ErrInactiveUser
	}

	now := s.now().UTC()
	user.LastLogin = &now
	user.UpdatedAt = now
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return AuthResult{}, fmt.Errorf("record login: %w", err)
	}

	token, err := s.openSession(ctx, user, meta)
	if err != nil {
		return AuthResult{}, err
	}
	s.logger.Info("user logged in", logging.Operation("login"), logging.UserHash(user.Email))
	return AuthResult{User: user, Token: token}, nil
}

// Authenticate resolves an access token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.tokens.Verify(accessToken, auth.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// Refresh exchanges a refresh token for a new access token. The session the
// token belongs to must still exist.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", auth.ErrInvalidToken
		}
		return "", fmt.Errorf("load session: %w", err)
	}
	if session.UserID != claims.UserID() {
		return "", auth.ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", auth.ErrInvalidToken
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	session.LastActivity = s.now().UTC()
	if err := s.sessions.SaveSession(ctx, *session); err != nil {
		s.logger.Warn("touch session failed", logging.Err(err))
	}
	return s.tokens.IssueAccess(user.ID, user.Email)
}

// Logout revokes the session behind refreshToken. Unknown sessions are not
// an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return err
	}
	if err := s.sessions.DeleteSession(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *AuthService) openSession(ctx context.Context, user *domain.User, meta SessionMeta) (auth.TokenPair, error) {
	sessionToken, err := auth.NewSessionToken()
	if err != nil {
		return auth.TokenPair{}, err
	}
	now := s.now().UTC()
	session := domain.Session{
		Token:        sessionToken,
		UserID:       user.ID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.tokens.RefreshTTL()),
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return auth.TokenPair{}, fmt.Errorf("save session: %w", err)
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Email, sessionToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	return pair, nil
}
