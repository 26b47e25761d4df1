// Package handlers exposes the REST surface of the food-donation backend.
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses (including conditional
// and idempotent responses). Identity comes from middleware.RequireSession;
// no handler trusts a user id supplied by the client.
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/http/middleware"
	"github.com/tbourn/go-zerohunger-backend/internal/repo"
	"github.com/tbourn/go-zerohunger-backend/internal/services"
	"github.com/tbourn/go-zerohunger-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// IdentityService covers accounts and sessions.
type IdentityService interface {
	Register(ctx context.Context, username, email, password string) (*services.Login, error)
	Authenticate(ctx context.Context, username, password string) (*services.Login, error)
	Logout(ctx context.Context, token string) error
	SwitchRole(ctx context.Context, userID, role string) (*domain.User, error)
}

// ListingService covers listing creation, browsing and completion.
type ListingService interface {
	CreateListing(ctx context.Context, providerID string, in services.ListingInput) (*domain.Listing, error)
	CreateListingWithImage(ctx context.Context, providerID string, in services.ListingInput, up *services.ImageUpload) (*domain.Listing, error)
	QueryAvailable(ctx context.Context, q services.ListingQuery) (*services.ListingPage, error)
	AvailableStats(ctx context.Context, q services.ListingQuery) (int64, *time.Time, error)
	ProviderStats(ctx context.Context, providerID string) (int64, *time.Time, error)
	MarkCompleted(ctx context.Context, listingID, providerID string) (*domain.Listing, error)
	Get(ctx context.Context, id string) (*domain.Listing, error)
	GetOwned(ctx context.Context, id, providerID string) (*domain.Listing, error)
	ListByProvider(ctx context.Context, providerID string) ([]domain.Listing, error)
	AvailableLocations(ctx context.Context) ([]string, error)
	Categories() []domain.Category
}

// RequestService covers receiver requests.
type RequestService interface {
	SubmitRequest(ctx context.Context, listingID, receiverID, message string) (*domain.FoodRequest, error)
	QueryByReceiver(ctx context.Context, receiverID string) ([]domain.FoodRequest, error)
	QueryByProvider(ctx context.Context, providerID string) ([]domain.FoodRequest, error)
	Get(ctx context.Context, id string) (*domain.FoodRequest, error)
}

// DeliveryService covers assignments and OTP verification.
type DeliveryService interface {
	ListAvailableForPickup(ctx context.Context, location string) ([]domain.FoodRequest, error)
	PendingLocations(ctx context.Context) ([]string, error)
	Assign(ctx context.Context, requestID, personID string) (*domain.DeliveryAssignment, error)
	VerifyOTP(ctx context.Context, assignmentID, actorID, code string, phase services.OTPPhase) (*domain.DeliveryAssignment, error)
	GetAssignment(ctx context.Context, id, actorID string) (*services.AssignmentDetail, error)
	ListByDeliveryPerson(ctx context.Context, personID string) ([]domain.DeliveryAssignment, error)
}

// DashboardService derives the role views.
type DashboardService interface {
	Provider(ctx context.Context, providerID string) (*services.ProviderDashboard, error)
	Receiver(ctx context.Context, receiverID string) (*services.ReceiverDashboard, error)
	Delivery(ctx context.Context, personID string) (*services.DeliveryDashboard, error)
	RequestViews(ctx context.Context, reqs []domain.FoodRequest, show services.OTPVisibility) ([]services.RequestView, error)
}

//
// Handler wiring
//

// Deps lists everything Handlers needs. DB backs the idempotency records of
// the two admission endpoints; when nil, Idempotency-Key is accepted but
// nothing is recorded.
type Deps struct {
	Identity   IdentityService
	Listings   ListingService
	Requests   RequestService
	Deliveries DeliveryService
	Dashboards DashboardService

	DB             *gorm.DB
	IdempotencyTTL time.Duration
	// MaxUploadBytes caps a multipart listing image; 0 means 5 MiB.
	MaxUploadBytes int64
}

// Handlers groups every HTTP endpoint.
type Handlers struct {
	identity   IdentityService
	listings   ListingService
	requests   RequestService
	deliveries DeliveryService
	dashboards DashboardService

	db        *gorm.DB
	idemTTL   time.Duration
	maxUpload int64
}

// New constructs a Handlers bound to the given services.
func New(d Deps) *Handlers {
	h := &Handlers{
		identity:   d.Identity,
		listings:   d.Listings,
		requests:   d.Requests,
		deliveries: d.Deliveries,
		dashboards: d.Dashboards,
		db:         d.DB,
		idemTTL:    d.IdempotencyTTL,
		maxUpload:  d.MaxUploadBytes,
	}
	if h.idemTTL <= 0 {
		h.idemTTL = 24 * time.Hour
	}
	if h.maxUpload <= 0 {
		h.maxUpload = 5 << 20
	}
	return h
}

//
// Shared DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// actor returns the authenticated user id. Routes using it sit behind
// RequireSession, so an empty result only happens when a route is mounted
// outside the authenticated group.
func actor(c *gin.Context) string {
	if u, ok := middleware.CurrentUser(c); ok {
		return u.ID
	}
	return ""
}

// clampPagination parses page and page_size query params. The service caps
// page_size again with its own maximum.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// replayID returns the result id recorded for this (user, :id, key) when the
// request carries a validated Idempotency-Key that was already used.
func (h *Handlers) replayID(c *gin.Context) (string, bool) {
	key, ok := middleware.GetIdempotencyKey(c)
	if !ok || h.db == nil {
		return "", false
	}
	rec, err := repo.GetIdempotency(c.Request.Context(), h.db, actor(c), c.Param("id"), key, time.Now().UTC())
	if err != nil || rec == nil {
		return "", false
	}
	return rec.ResultID, true
}

// remember stores the result of a successful admission under the request's
// Idempotency-Key. Best effort: a failure only costs the replay.
func (h *Handlers) remember(c *gin.Context, resultID string, status int) {
	key, ok := middleware.GetIdempotencyKey(c)
	if !ok || h.db == nil {
		return
	}
	k := repo.IdempotencyKey{UserID: actor(c), Scope: c.Param("id"), Key: key}
	_, err := repo.SaveIdempotency(c.Request.Context(), h.db, k, resultID, status, h.idemTTL, time.Now())
	if err != nil && !errors.Is(err, repo.ErrDuplicate) {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
	}
}

func markReplayed(c *gin.Context) {
	c.Header(middleware.HeaderIdempotencyReplayed, "true")
}
