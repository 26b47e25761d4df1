// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// FoodRequest model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

// CreateRequest inserts r, assigning Seq and timestamps when unset.
func CreateRequest(ctx context.Context, db *gorm.DB, r *domain.FoodRequest) error {
	now := time.Now().UTC()
	if r.Seq == 0 {
		r.Seq = NextSeq()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	return db.WithContext(ctx).Omit("Listing").Create(r).Error
}

// GetRequest fetches a request by ID with its listing preloaded.
func GetRequest(ctx context.Context, db *gorm.DB, id string) (*domain.FoodRequest, error) {
	var r domain.FoodRequest
	if err := db.WithContext(ctx).Preload("Listing").Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequestsByReceiver returns a receiver's requests with listings preloaded.
func ListRequestsByReceiver(ctx context.Context, db *gorm.DB, receiverID string, order Order) ([]domain.FoodRequest, error) {
	var out []domain.FoodRequest
	err := db.WithContext(ctx).
		Preload("Listing").
		Where("receiver_id = ?", receiverID).
		Order(order.clause("food_requests")).
		Find(&out).Error
	return out, err
}

// ListRequestsByProvider returns every request made against listings owned by
// providerID, with listings preloaded.
func ListRequestsByProvider(ctx context.Context, db *gorm.DB, providerID string, order Order) ([]domain.FoodRequest, error) {
	var out []domain.FoodRequest
	err := db.WithContext(ctx).
		Preload("Listing").
		Joins("JOIN listings ON listings.id = food_requests.listing_id").
		Where("listings.provider_id = ?", providerID).
		Order(order.clause("food_requests")).
		Find(&out).Error
	return out, err
}

// ListPendingRequests returns pending requests, optionally restricted to a
// case-folded listing location. A non-positive limit returns every match.
func ListPendingRequests(ctx context.Context, db *gorm.DB, locationKey string, order Order, limit int) ([]domain.FoodRequest, error) {
	var out []domain.FoodRequest
	q := db.WithContext(ctx).
		Preload("Listing").
		Joins("JOIN listings ON listings.id = food_requests.listing_id").
		Where("food_requests.status = ?", domain.RequestPending)
	if locationKey != "" {
		q = q.Where("listings.location_key = ?", locationKey)
	}
	q = q.Order(order.clause("food_requests"))
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// DistinctPendingLocations returns one spelling per case-folded location of
// listings that have a pending request, sorted by the folded key.
func DistinctPendingLocations(ctx context.Context, db *gorm.DB) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.FoodRequest{}).
		Joins("JOIN listings ON listings.id = food_requests.listing_id").
		Where("food_requests.status = ?", domain.RequestPending).
		Group("listings.location_key").
		Order("listings.location_key").
		Pluck("MIN(listings.location)", &out).Error
	return out, err
}

// TransitionRequest compare-and-sets the request status from → to.
func TransitionRequest(ctx context.Context, db *gorm.DB, id string, from, to domain.RequestStatus, extra map[string]any) (bool, error) {
	return compareAndSet(ctx, db, &domain.FoodRequest{}, id, string(from), string(to), extra)
}
