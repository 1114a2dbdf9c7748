package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/brody/brody-back/internal/domain"
)

// SessionStore keeps login sessions until they expire or are revoked.
type SessionStore interface {
	SaveSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// MemorySessionStore expires sessions with go-cache.
type MemorySessionStore struct {
	items *cache.Cache
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{items: cache.New(time.Hour, 10*time.Minute)}
}

func (s *MemorySessionStore) SaveSession(_ context.Context, session domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	s.items.Set(session.Token, session, ttl)
	return nil
}

func (s *MemorySessionStore) GetSession(_ context.Context, token string) (*domain.Session, error) {
	value, ok := s.items.Get(token)
	if !ok {
		return nil, ErrNotFound
	}
	session := value.(domain.Session)
	return &session, nil
}

func (s *MemorySessionStore) DeleteSession(_ context.Context, token string) error {
	s.items.Delete(token)
	return nil
}

type RedisSessionConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisSessionStore stores one JSON value per session with a TTL equal to
// the session lifetime.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(ctx context.Context, cfg RedisSessionConfig) (*RedisSessionStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "brody:session:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSessionStore{client: client, prefix: cfg.KeyPrefix}, nil
}

func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

func (s *RedisSessionStore) SaveSession(ctx context.Context, session domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	encoded, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+session.Token, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	encoded, err := s.client.Get(ctx, s.prefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(encoded, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) DeleteSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.prefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
