// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

// AvailableListingsStats returns the number of available listings matching f
// and the greatest UpdatedAt among them. When nothing matches, the count is 0
// and maxUpdatedAt is nil.
func AvailableListingsStats(ctx context.Context, db *gorm.DB, f ListingFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	return listingStats(f.apply(db.WithContext(ctx).Model(&domain.Listing{})))
}

// ProviderListingsStats returns aggregate metadata for a provider's listings:
// the total number of rows and the maximum UpdatedAt timestamp among them.
//
// Return values:
//   - count:        total listings for providerID
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func ProviderListingsStats(ctx context.Context, db *gorm.DB, providerID string) (count int64, maxUpdatedAt *time.Time, err error) {
	return listingStats(db.WithContext(ctx).Model(&domain.Listing{}).Where("provider_id = ?", providerID))
}

func listingStats(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	// Count
	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
