// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file records lifecycle transitions.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

// CreateStatusEvent appends one transition record. Call it with the same tx
// that performed the transition.
func CreateStatusEvent(ctx context.Context, db *gorm.DB, entity, entityID, from, to, actorID string) (*domain.StatusEvent, error) {
	ev := &domain.StatusEvent{
		ID:         uuid.NewString(),
		Entity:     entity,
		EntityID:   entityID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// ListStatusEvents returns the history of one entity, oldest first.
func ListStatusEvents(ctx context.Context, db *gorm.DB, entity, entityID string) ([]domain.StatusEvent, error) {
	var out []domain.StatusEvent
	err := db.WithContext(ctx).
		Where("entity = ? AND entity_id = ?", entity, entityID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
