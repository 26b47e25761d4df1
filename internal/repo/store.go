package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

// Store adapts the repository free functions to the per-entity interfaces
// declared by the services package.
type Store struct{}

func (Store) CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return CreateUser(ctx, db, u)
}

func (Store) GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return GetUserByID(ctx, db, id)
}

func (Store) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return GetUserByUsername(ctx, db, username)
}

func (Store) GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return GetUserByEmail(ctx, db, email)
}

func (Store) UpdateUserRole(ctx context.Context, db *gorm.DB, id string, role domain.Role) error {
	return UpdateUserRole(ctx, db, id, role)
}

func (Store) CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error {
	return CreateListing(ctx, db, l)
}

func (Store) GetListing(ctx context.Context, db *gorm.DB, id string) (*domain.Listing, error) {
	return GetListing(ctx, db, id)
}

func (Store) ListAvailableListings(ctx context.Context, db *gorm.DB, f ListingFilter, offset, limit int) ([]domain.Listing, error) {
	return ListAvailableListings(ctx, db, f, offset, limit)
}

func (Store) CountAvailableListings(ctx context.Context, db *gorm.DB, f ListingFilter) (int64, error) {
	return CountAvailableListings(ctx, db, f)
}

func (Store) ListListingsByProvider(ctx context.Context, db *gorm.DB, providerID string) ([]domain.Listing, error) {
	return ListListingsByProvider(ctx, db, providerID)
}

func (Store) CountListingsByStatus(ctx context.Context, db *gorm.DB, providerID string) (map[domain.ListingStatus]int64, error) {
	return CountListingsByStatus(ctx, db, providerID)
}

func (Store) DistinctAvailableLocations(ctx context.Context, db *gorm.DB) ([]string, error) {
	return DistinctAvailableLocations(ctx, db)
}

func (Store) TransitionListing(ctx context.Context, db *gorm.DB, id string, from, to domain.ListingStatus, extra map[string]any) (bool, error) {
	return TransitionListing(ctx, db, id, from, to, extra)
}

func (Store) CreateRequest(ctx context.Context, db *gorm.DB, r *domain.FoodRequest) error {
	return CreateRequest(ctx, db, r)
}

func (Store) GetRequest(ctx context.Context, db *gorm.DB, id string) (*domain.FoodRequest, error) {
	return GetRequest(ctx, db, id)
}

func (Store) ListRequestsByReceiver(ctx context.Context, db *gorm.DB, receiverID string, order Order) ([]domain.FoodRequest, error) {
	return ListRequestsByReceiver(ctx, db, receiverID, order)
}

func (Store) ListRequestsByProvider(ctx context.Context, db *gorm.DB, providerID string, order Order) ([]domain.FoodRequest, error) {
	return ListRequestsByProvider(ctx, db, providerID, order)
}

func (Store) ListPendingRequests(ctx context.Context, db *gorm.DB, locationKey string, order Order, limit int) ([]domain.FoodRequest, error) {
	return ListPendingRequests(ctx, db, locationKey, order, limit)
}

func (Store) DistinctPendingLocations(ctx context.Context, db *gorm.DB) ([]string, error) {
	return DistinctPendingLocations(ctx, db)
}

func (Store) TransitionRequest(ctx context.Context, db *gorm.DB, id string, from, to domain.RequestStatus, extra map[string]any) (bool, error) {
	return TransitionRequest(ctx, db, id, from, to, extra)
}

func (Store) CreateAssignment(ctx context.Context, db *gorm.DB, a *domain.DeliveryAssignment) error {
	return CreateAssignment(ctx, db, a)
}

func (Store) GetAssignment(ctx context.Context, db *gorm.DB, id string) (*domain.DeliveryAssignment, error) {
	return GetAssignment(ctx, db, id)
}

func (Store) ListAssignmentsByDeliveryPerson(ctx context.Context, db *gorm.DB, personID string, order Order) ([]domain.DeliveryAssignment, error) {
	return ListAssignmentsByDeliveryPerson(ctx, db, personID, order)
}

func (Store) AssignmentsByRequest(ctx context.Context, db *gorm.DB, requestIDs []string) (map[string]domain.DeliveryAssignment, error) {
	return AssignmentsByRequest(ctx, db, requestIDs)
}

func (Store) TransitionAssignment(ctx context.Context, db *gorm.DB, id string, from, to domain.AssignmentStatus, extra map[string]any) (bool, error) {
	return TransitionAssignment(ctx, db, id, from, to, extra)
}

func (Store) CreateStatusEvent(ctx context.Context, db *gorm.DB, entity, entityID, from, to, actorID string) (*domain.StatusEvent, error) {
	return CreateStatusEvent(ctx, db, entity, entityID, from, to, actorID)
}

func (Store) ListStatusEvents(ctx context.Context, db *gorm.DB, entity, entityID string) ([]domain.StatusEvent, error) {
	return ListStatusEvents(ctx, db, entity, entityID)
}
