// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// DeliveryAssignment model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

// CreateAssignment inserts a, assigning Seq and timestamps when unset. A second
// assignment for the same request fails on ux_assignment_request.
func CreateAssignment(ctx context.Context, db *gorm.DB, a *domain.DeliveryAssignment) error {
	now := time.Now().UTC()
	if a.Seq == 0 {
		a.Seq = NextSeq()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	return db.WithContext(ctx).Omit("Request").Create(a).Error
}

// GetAssignment fetches an assignment with its request and listing preloaded.
func GetAssignment(ctx context.Context, db *gorm.DB, id string) (*domain.DeliveryAssignment, error) {
	var a domain.DeliveryAssignment
	err := db.WithContext(ctx).
		Preload("Request.Listing").
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAssignmentsByDeliveryPerson returns a delivery person's assignments with
// request and listing preloaded.
func ListAssignmentsByDeliveryPerson(ctx context.Context, db *gorm.DB, personID string, order Order) ([]domain.DeliveryAssignment, error) {
	var out []domain.DeliveryAssignment
	err := db.WithContext(ctx).
		Preload("Request.Listing").
		Where("delivery_person_id = ?", personID).
		Order(order.clause("delivery_assignments")).
		Find(&out).Error
	return out, err
}

// AssignmentsByRequest maps request IDs to their assignment, if any.
func AssignmentsByRequest(ctx context.Context, db *gorm.DB, requestIDs []string) (map[string]domain.DeliveryAssignment, error) {
	out := make(map[string]domain.DeliveryAssignment, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}
	var rows []domain.DeliveryAssignment
	if err := db.WithContext(ctx).Where("request_id IN ?", requestIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, a := range rows {
		out[a.RequestID] = a
	}
	return out, nil
}

// TransitionAssignment compare-and-sets the assignment status from → to.
func TransitionAssignment(ctx context.Context, db *gorm.DB, id string, from, to domain.AssignmentStatus, extra map[string]any) (bool, error) {
	return compareAndSet(ctx, db, &domain.DeliveryAssignment{}, id, string(from), string(to), extra)
}
