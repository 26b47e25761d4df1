// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Listing
// model: inserts, filtered reads, per-provider aggregates and the status
// compare-and-set used by booking and completion.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

// ListingFilter narrows ListAvailableListings. Empty fields match everything.
// LocationKey must already be case-folded.
type ListingFilter struct {
	LocationKey string
	Category    domain.Category
}

func (f ListingFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("status = ?", domain.ListingAvailable)
	if f.LocationKey != "" {
		q = q.Where("location_key = ?", f.LocationKey)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	return q
}

// CreateListing inserts l, assigning Seq and timestamps when unset.
func CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error {
	now := time.Now().UTC()
	if l.Seq == 0 {
		l.Seq = NextSeq()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	return db.WithContext(ctx).Create(l).Error
}

// GetListing fetches a listing by ID.
func GetListing(ctx context.Context, db *gorm.DB, id string) (*domain.Listing, error) {
	var l domain.Listing
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// ListAvailableListings returns available listings matching f, newest first.
// A non-positive limit returns every match.
func ListAvailableListings(ctx context.Context, db *gorm.DB, f ListingFilter, offset, limit int) ([]domain.Listing, error) {
	var out []domain.Listing
	q := f.apply(db.WithContext(ctx).Model(&domain.Listing{})).Order(NewestFirst.clause("listings"))
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountAvailableListings returns how many available listings match f.
func CountAvailableListings(ctx context.Context, db *gorm.DB, f ListingFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Listing{})).Count(&total).Error
	return total, err
}

// ListListingsByProvider returns every listing owned by providerID, newest first.
func ListListingsByProvider(ctx context.Context, db *gorm.DB, providerID string) ([]domain.Listing, error) {
	var out []domain.Listing
	err := db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order(NewestFirst.clause("listings")).
		Find(&out).Error
	return out, err
}

// CountListingsByStatus groups a provider's listings by status.
func CountListingsByStatus(ctx context.Context, db *gorm.DB, providerID string) (map[domain.ListingStatus]int64, error) {
	var rows []struct {
		Status domain.ListingStatus
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Listing{}).
		Select("status, COUNT(*) AS n").
		Where("provider_id = ?", providerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ListingStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// DistinctAvailableLocations returns one spelling per case-folded location
// among available listings, sorted by the folded key.
func DistinctAvailableLocations(ctx context.Context, db *gorm.DB) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("status = ?", domain.ListingAvailable).
		Group("location_key").
		Order("location_key").
		Pluck("MIN(location)", &out).Error
	return out, err
}

// TransitionListing compare-and-sets the listing status from → to. extra
// columns (requested_by, requested_at) are written in the same statement.
func TransitionListing(ctx context.Context, db *gorm.DB, id string, from, to domain.ListingStatus, extra map[string]any) (bool, error) {
	return compareAndSet(ctx, db, &domain.Listing{}, id, string(from), string(to), extra)
}
