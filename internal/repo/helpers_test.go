package repo

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedListing(t *testing.T, db *gorm.DB, provider, location string, cat domain.Category) *domain.Listing {
	t.Helper()
	l := &domain.Listing{
		ID:          uuid.NewString(),
		Title:       "Rice packs",
		Description: "Cooked rice",
		Category:    cat,
		ExpiryHours: 4,
		Location:    location,
		LocationKey: location,
		ProviderID:  provider,
		Status:      domain.ListingAvailable,
	}
	if err := CreateListing(context.Background(), db, l); err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return l
}

func seedRequest(t *testing.T, db *gorm.DB, listingID, receiver string) *domain.FoodRequest {
	t.Helper()
	r := &domain.FoodRequest{
		ID:         uuid.NewString(),
		ListingID:  listingID,
		ReceiverID: receiver,
		Status:     domain.RequestPending,
	}
	if err := CreateRequest(context.Background(), db, r); err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return r
}

func seedAssignment(t *testing.T, db *gorm.DB, requestID, person string) *domain.DeliveryAssignment {
	t.Helper()
	a := &domain.DeliveryAssignment{
		ID:               uuid.NewString(),
		RequestID:        requestID,
		DeliveryPersonID: person,
		Status:           domain.AssignmentAssigned,
		PickupOTP:        "123456",
		DeliveryOTP:      "654321",
	}
	if err := CreateAssignment(context.Background(), db, a); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return a
}
