package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/repo"
)

// UserRepo defines the persistence contract required by IdentityService.
type UserRepo interface {
	CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error
	GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error)
	UpdateUserRole(ctx context.Context, db *gorm.DB, id string, role domain.Role) error
}

// ListingRepo defines the persistence contract for listings. TransitionListing
// is a compare-and-set: it reports false when the row was not in `from`.
type ListingRepo interface {
	CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error
	GetListing(ctx context.Context, db *gorm.DB, id string) (*domain.Listing, error)
	ListAvailableListings(ctx context.Context, db *gorm.DB, f repo.ListingFilter, offset, limit int) ([]domain.Listing, error)
	CountAvailableListings(ctx context.Context, db *gorm.DB, f repo.ListingFilter) (int64, error)
	ListListingsByProvider(ctx context.Context, db *gorm.DB, providerID string) ([]domain.Listing, error)
	CountListingsByStatus(ctx context.Context, db *gorm.DB, providerID string) (map[domain.ListingStatus]int64, error)
	DistinctAvailableLocations(ctx context.Context, db *gorm.DB) ([]string, error)
	TransitionListing(ctx context.Context, db *gorm.DB, id string, from, to domain.ListingStatus, extra map[string]any) (bool, error)
}

// RequestRepo defines the persistence contract for food requests.
type RequestRepo interface {
	CreateRequest(ctx context.Context, db *gorm.DB, r *domain.FoodRequest) error
	GetRequest(ctx context.Context, db *gorm.DB, id string) (*domain.FoodRequest, error)
	ListRequestsByReceiver(ctx context.Context, db *gorm.DB, receiverID string, order repo.Order) ([]domain.FoodRequest, error)
	ListRequestsByProvider(ctx context.Context, db *gorm.DB, providerID string, order repo.Order) ([]domain.FoodRequest, error)
	ListPendingRequests(ctx context.Context, db *gorm.DB, locationKey string, order repo.Order, limit int) ([]domain.FoodRequest, error)
	DistinctPendingLocations(ctx context.Context, db *gorm.DB) ([]string, error)
	TransitionRequest(ctx context.Context, db *gorm.DB, id string, from, to domain.RequestStatus, extra map[string]any) (bool, error)
}

// AssignmentRepo defines the persistence contract for delivery assignments.
type AssignmentRepo interface {
	CreateAssignment(ctx context.Context, db *gorm.DB, a *domain.DeliveryAssignment) error
	GetAssignment(ctx context.Context, db *gorm.DB, id string) (*domain.DeliveryAssignment, error)
	ListAssignmentsByDeliveryPerson(ctx context.Context, db *gorm.DB, personID string, order repo.Order) ([]domain.DeliveryAssignment, error)
	AssignmentsByRequest(ctx context.Context, db *gorm.DB, requestIDs []string) (map[string]domain.DeliveryAssignment, error)
	TransitionAssignment(ctx context.Context, db *gorm.DB, id string, from, to domain.AssignmentStatus, extra map[string]any) (bool, error)
}

// EventRepo records lifecycle transitions.
type EventRepo interface {
	CreateStatusEvent(ctx context.Context, db *gorm.DB, entity, entityID, from, to, actorID string) (*domain.StatusEvent, error)
	ListStatusEvents(ctx context.Context, db *gorm.DB, entity, entityID string) ([]domain.StatusEvent, error)
}
