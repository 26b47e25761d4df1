package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

func TestSessionRepo_Lifecycle(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	live := &domain.Session{ID: "digest-live", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	dead := &domain.Session{ID: "digest-dead", UserID: "u1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	for _, s := range []*domain.Session{live, dead} {
		if err := CreateSession(ctx, db, s); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	got, err := GetSession(ctx, db, "digest-live", now)
	if err != nil || got.UserID != "u1" {
		t.Fatalf("GetSession live: got=%+v err=%v", got, err)
	}
	if _, err := GetSession(ctx, db, "digest-dead", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session should be not found, got %v", err)
	}

	n, err := PurgeExpiredSessions(ctx, db, now)
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}

	if err := DeleteSession(ctx, db, "digest-live"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := GetSession(ctx, db, "digest-live", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted session should be not found, got %v", err)
	}
	if err := DeleteSession(ctx, db, "digest-live"); err != nil {
		t.Fatalf("deleting twice should be a no-op, got %v", err)
	}
}
