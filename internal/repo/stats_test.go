package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

func TestAvailableListingsStats_EmptyScope(t *testing.T) {
	db := newRepoDB(t)

	n, maxTS, err := AvailableListingsStats(context.Background(), db, ListingFilter{LocationKey: "colombo"})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if n != 0 || maxTS != nil {
		t.Fatalf("empty scope: n=%d max=%v", n, maxTS)
	}
}

func TestAvailableListingsStats_CountsScopeAndTracksLatest(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	seedListing(t, db, "p1", "colombo", "Rice")
	time.Sleep(5 * time.Millisecond)
	latest := seedListing(t, db, "p1", "colombo", "Bread")
	seedListing(t, db, "p1", "kandy", "Rice")

	n, maxTS, err := AvailableListingsStats(ctx, db, ListingFilter{LocationKey: "colombo"})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if n != 2 || maxTS == nil {
		t.Fatalf("colombo: n=%d max=%v", n, maxTS)
	}
	if d := maxTS.Sub(latest.UpdatedAt); d > time.Millisecond || d < -time.Millisecond {
		t.Fatalf("max=%v want %v", maxTS, latest.UpdatedAt)
	}

	n, _, err = AvailableListingsStats(ctx, db, ListingFilter{Category: "Rice"})
	if err != nil || n != 2 {
		t.Fatalf("rice: n=%d err=%v", n, err)
	}

	// Booking takes a listing out of the available scope.
	if ok, err := TransitionListing(ctx, db, latest.ID, domain.ListingAvailable, domain.ListingBooked, nil); err != nil || !ok {
		t.Fatalf("transition: ok=%v err=%v", ok, err)
	}
	n, _, err = AvailableListingsStats(ctx, db, ListingFilter{LocationKey: "colombo"})
	if err != nil || n != 1 {
		t.Fatalf("after booking: n=%d err=%v", n, err)
	}
}

func TestProviderListingsStats_AllStatuses(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	a := seedListing(t, db, "p1", "colombo", "Rice")
	seedListing(t, db, "p1", "galle", "Curry")
	seedListing(t, db, "p2", "colombo", "Rice")

	if ok, err := TransitionListing(ctx, db, a.ID, domain.ListingAvailable, domain.ListingBooked, nil); err != nil || !ok {
		t.Fatalf("transition: ok=%v err=%v", ok, err)
	}

	n, maxTS, err := ProviderListingsStats(ctx, db, "p1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if n != 2 || maxTS == nil {
		t.Fatalf("p1: n=%d max=%v", n, maxTS)
	}

	n, maxTS, err = ProviderListingsStats(ctx, db, "nobody")
	if err != nil || n != 0 || maxTS != nil {
		t.Fatalf("nobody: n=%d max=%v err=%v", n, maxTS, err)
	}
}

func TestListingStats_ErrorWithoutTable(t *testing.T) {
	db := newRepoDB(t)
	if err := db.Migrator().DropTable(&domain.Listing{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, _, err := ProviderListingsStats(context.Background(), db, "p1"); err == nil {
		t.Fatalf("expected error without listings table")
	}
}
