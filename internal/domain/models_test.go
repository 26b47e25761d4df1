package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_models_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(User{}).TableName():               "users",
		(Listing{}).TableName():            "listings",
		(FoodRequest{}).TableName():        "food_requests",
		(DeliveryAssignment{}).TableName(): "delivery_assignments",
		(Session{}).TableName():            "sessions",
		(StatusEvent{}).TableName():        "status_events",
		(Idempotency{}).TableName():        "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&User{}, &Listing{}, &FoodRequest{}, &DeliveryAssignment{},
		&Session{}, &StatusEvent{}, &Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	checks := []struct {
		model any
		name  string
	}{
		{&User{}, "ux_users_username"},
		{&User{}, "ux_users_email"},
		{&Listing{}, "idx_listings_location_status"},
		{&Listing{}, "idx_listings_provider"},
		{&DeliveryAssignment{}, "ux_assignment_request"},
		{&StatusEvent{}, "idx_events_entity"},
		{&Idempotency{}, "ux_user_scope_key"},
	}
	for _, c := range checks {
		if !m.HasIndex(c.model, c.name) {
			t.Fatalf("expected index %s on %T", c.name, c.model)
		}
	}
}

func TestUniqueAssignmentPerRequest(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&User{}, &Listing{}, &FoodRequest{}, &DeliveryAssignment{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	now := time.Now().UTC()
	l := &Listing{ID: uuid.NewString(), Title: "t", Description: "d", Category: "Rice",
		ExpiryHours: 2, Location: "Colombo", LocationKey: "colombo", ProviderID: uuid.NewString(),
		Status: ListingBooked, CreatedAt: now}
	if err := db.Create(l).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	r := &FoodRequest{ID: uuid.NewString(), ListingID: l.ID, ReceiverID: uuid.NewString(),
		Status: RequestAssigned, CreatedAt: now}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("seed request: %v", err)
	}
	a1 := &DeliveryAssignment{ID: uuid.NewString(), RequestID: r.ID, DeliveryPersonID: "c1",
		Status: AssignmentAssigned, PickupOTP: "000000", DeliveryOTP: "111111", CreatedAt: now}
	if err := db.Create(a1).Error; err != nil {
		t.Fatalf("first assignment: %v", err)
	}
	a2 := &DeliveryAssignment{ID: uuid.NewString(), RequestID: r.ID, DeliveryPersonID: "c2",
		Status: AssignmentAssigned, PickupOTP: "222222", DeliveryOTP: "333333", CreatedAt: now}
	if err := db.Create(a2).Error; err == nil {
		t.Fatalf("expected unique violation for second assignment on the same request")
	}
}

func TestJSON_HidesSecrets(t *testing.T) {
	u := User{ID: "u1", Username: "alice", Email: "a@x.com", PasswordHash: "hash", CurrentRole: RoleReceiver}
	b, _ := json.Marshal(u)
	if strings.Contains(string(b), "hash") || strings.Contains(string(b), "password") {
		t.Fatalf("password hash leaked: %s", b)
	}

	a := DeliveryAssignment{ID: "a1", PickupOTP: "123456", DeliveryOTP: "654321", Status: AssignmentAssigned}
	b, _ = json.Marshal(a)
	if strings.Contains(string(b), "123456") || strings.Contains(string(b), "654321") {
		t.Fatalf("otp leaked: %s", b)
	}

	l := Listing{ID: "l1", Location: "Colombo", LocationKey: "colombo"}
	b, _ = json.Marshal(l)
	if strings.Contains(string(b), "location_key") {
		t.Fatalf("location key should not be serialized: %s", b)
	}
}
