// Package services – session stores
//
// Login sessions are opaque bearer tokens. Only the SHA-256 digest of a token
// is ever persisted, so a leaked sessions table or Redis dump cannot be
// replayed. Two stores are provided: GORM (default) and Redis.
package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/repo"
)

// SessionStore persists session digests with an absolute expiry.
type SessionStore interface {
	Create(ctx context.Context, digest, userID string, expiresAt time.Time) error
	// Lookup returns the owning user ID or ErrSessionNotFound.
	Lookup(ctx context.Context, digest string) (string, error)
	Revoke(ctx context.Context, digest string) error
}

// NewSessionToken returns a 32-byte random token, base64url encoded.
func NewSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// TokenDigest is the storage key of a session token.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ----------------------------------------------------------------------------
// GORM

// GormSessionStore keeps sessions in the sessions table.
type GormSessionStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *GormSessionStore) Create(ctx context.Context, digest, userID string, expiresAt time.Time) error {
	return repo.CreateSession(ctx, s.DB, &domain.Session{
		ID:        digest,
		UserID:    userID,
		CreatedAt: s.Now(),
		ExpiresAt: expiresAt,
	})
}

func (s *GormSessionStore) Lookup(ctx context.Context, digest string) (string, error) {
	sess, err := repo.GetSession(ctx, s.DB, digest, s.Now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

func (s *GormSessionStore) Revoke(ctx context.Context, digest string) error {
	return repo.DeleteSession(ctx, s.DB, digest)
}

// Purge removes expired rows. Redis expires keys on its own.
func (s *GormSessionStore) Purge(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredSessions(ctx, s.DB, s.Now())
}

// ----------------------------------------------------------------------------
// Redis

// RedisSessionStore keeps one hash per session with a key expiry.
type RedisSessionStore struct {
	Client *redis.Client
	Prefix string
}

// NewRedisSessionStore parses redisURL and verifies connectivity.
func NewRedisSessionStore(ctx context.Context, redisURL string) (*RedisSessionStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisSessionStore{Client: client, Prefix: "zerohunger:session:"}, nil
}

func (s *RedisSessionStore) key(digest string) string { return s.Prefix + digest }

func (s *RedisSessionStore) Create(ctx context.Context, digest, userID string, expiresAt time.Time) error {
	k := s.key(digest)
	pipe := s.Client.Pipeline()
	pipe.HSet(ctx, k, map[string]interface{}{
		"user_id":    userID,
		"created_at": time.Now().Unix(),
		"expires_at": expiresAt.Unix(),
	})
	pipe.ExpireAt(ctx, k, expiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Lookup(ctx context.Context, digest string) (string, error) {
	uid, err := s.Client.HGet(ctx, s.key(digest), "user_id").Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return uid, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, digest string) error {
	return s.Client.Del(ctx, s.key(digest)).Err()
}

// Close releases the Redis client.
func (s *RedisSessionStore) Close() error { return s.Client.Close() }
