package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

// ErrDuplicate is returned by SaveIdempotency when (user, scope, key) already
// has a record.
var ErrDuplicate = errors.New("duplicate")

// IdempotencyKey identifies one retried admission: the caller, the resource
// id from the path, and the client-chosen key.
type IdempotencyKey struct {
	UserID string
	Scope  string
	Key    string
}

func (k IdempotencyKey) valid() bool {
	return strings.TrimSpace(k.UserID) != "" && strings.TrimSpace(k.Scope) != "" && k.Key != ""
}

// GetIdempotency returns the record for (userID, scope, key) if it has not
// expired at now, else ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	k := IdempotencyKey{UserID: userID, Scope: scope, Key: key}
	if !k.valid() {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(&domain.Idempotency{UserID: k.UserID, Scope: k.Scope, Key: k.Key}).
		Where("expires_at > ?", now).
		Take(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveIdempotency records resultID and status under k until now+ttl. The
// insert ignores conflicts, so concurrent retries race harmlessly: the loser
// gets ErrDuplicate and the first stored result stands.
func SaveIdempotency(ctx context.Context, db *gorm.DB, k IdempotencyKey, resultID string, status int, ttl time.Duration, now time.Time) (*domain.Idempotency, error) {
	if !k.valid() {
		return nil, errors.New("idempotency key needs user, scope and key")
	}
	now = now.UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    k.UserID,
		Scope:     k.Scope,
		Key:       k.Key,
		ResultID:  resultID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	switch {
	case res.Error != nil && IsUniqueViolation(res.Error):
		return nil, ErrDuplicate
	case res.Error != nil:
		return nil, res.Error
	case res.RowsAffected == 0:
		return nil, ErrDuplicate
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records that expired at or before now.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
