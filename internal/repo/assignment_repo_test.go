package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

func TestCreateAssignment_UniquePerRequest(t *testing.T) {
	db := newRepoDB(t)
	l := seedListing(t, db, "p1", "colombo", "Rice")
	r := seedRequest(t, db, l.ID, "rc1")
	seedAssignment(t, db, r.ID, "d1")

	dup := &domain.DeliveryAssignment{
		ID: uuid.NewString(), RequestID: r.ID, DeliveryPersonID: "d2",
		Status: domain.AssignmentAssigned, PickupOTP: "000000", DeliveryOTP: "000001",
	}
	if err := CreateAssignment(context.Background(), db, dup); !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestGetAssignment_PreloadsRequestAndListing(t *testing.T) {
	db := newRepoDB(t)
	l := seedListing(t, db, "p1", "colombo", "Rice")
	r := seedRequest(t, db, l.ID, "rc1")
	a := seedAssignment(t, db, r.ID, "d1")

	got, err := GetAssignment(context.Background(), db, a.ID)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if got.Request.ID != r.ID || got.Request.Listing.ID != l.ID {
		t.Fatalf("associations not preloaded: %+v", got)
	}
	if got.PickupOTP != "123456" || got.DeliveryOTP != "654321" {
		t.Fatalf("codes not persisted: %+v", got)
	}
	if _, err := GetAssignment(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAssignmentsByDeliveryPerson_AndByRequest(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	l1 := seedListing(t, db, "p1", "colombo", "Rice")
	l2 := seedListing(t, db, "p1", "colombo", "Rice")
	r1 := seedRequest(t, db, l1.ID, "rc1")
	r2 := seedRequest(t, db, l2.ID, "rc1")
	a1 := seedAssignment(t, db, r1.ID, "d1")
	a2 := seedAssignment(t, db, r2.ID, "d1")

	got, err := ListAssignmentsByDeliveryPerson(ctx, db, "d1", NewestFirst)
	if err != nil || len(got) != 2 || got[0].ID != a2.ID || got[1].ID != a1.ID {
		t.Fatalf("list: %+v err=%v", got, err)
	}
	if got[0].Request.Listing.ID != l2.ID {
		t.Fatalf("nested preload missing: %+v", got[0])
	}

	m, err := AssignmentsByRequest(ctx, db, []string{r1.ID, r2.ID, "none"})
	if err != nil || len(m) != 2 || m[r1.ID].ID != a1.ID {
		t.Fatalf("by request: %+v err=%v", m, err)
	}
	empty, err := AssignmentsByRequest(ctx, db, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty input: %+v err=%v", empty, err)
	}
}

func TestTransitionAssignment_SetsTimestampOnce(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	l := seedListing(t, db, "p1", "colombo", "Rice")
	r := seedRequest(t, db, l.ID, "rc1")
	a := seedAssignment(t, db, r.ID, "d1")

	at := time.Now().UTC()
	ok, err := TransitionAssignment(ctx, db, a.ID, domain.AssignmentAssigned, domain.AssignmentPickedUp, map[string]any{"picked_up_at": at})
	if err != nil || !ok {
		t.Fatalf("pickup CAS: ok=%v err=%v", ok, err)
	}
	ok, _ = TransitionAssignment(ctx, db, a.ID, domain.AssignmentAssigned, domain.AssignmentPickedUp, map[string]any{"picked_up_at": at.Add(time.Hour)})
	if ok {
		t.Fatalf("second pickup must not apply")
	}
	got, _ := GetAssignment(ctx, db, a.ID)
	if got.Status != domain.AssignmentPickedUp || got.PickedUpAt == nil || got.PickedUpAt.Sub(at).Abs() > time.Millisecond {
		t.Fatalf("unexpected assignment: %+v", got)
	}
}
