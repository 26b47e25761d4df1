package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/events"
)

// eventBatch collects the status events written inside one transaction so
// they can be published once it commits.
type eventBatch struct {
	repo EventRepo
	evs  []domain.StatusEvent
}

func (b *eventBatch) add(ctx context.Context, tx *gorm.DB, entity, entityID, from, to, actorID string) error {
	ev, err := b.repo.CreateStatusEvent(ctx, tx, entity, entityID, from, to, actorID)
	if err != nil {
		return fmt.Errorf("record %s event: %w", entity, err)
	}
	b.evs = append(b.evs, *ev)
	return nil
}

// publish hands committed events to pub. Failures are logged only; the
// transition itself has already been persisted.
func (b *eventBatch) publish(ctx context.Context, pub events.Publisher) {
	if pub == nil || len(b.evs) == 0 {
		return
	}
	if err := pub.Publish(context.WithoutCancel(ctx), b.evs...); err != nil {
		log.Warn().Err(err).Int("events", len(b.evs)).Str("entity_id", b.evs[0].EntityID).Msg("publish status events failed")
	}
}
