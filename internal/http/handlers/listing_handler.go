// Listing HTTP handlers (receiver side).
//
// This file exposes:
//   - GET  /categories               (category enumeration)
//   - GET  /listings                 (browse available listings, paginated, ETag support)
//   - GET  /listings/locations       (distinct locations with available food)
//   - GET  /listings/{id}            (listing detail)
//   - POST /listings/{id}/requests   (submit a request, Idempotency-Key support)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// submission exists for (user, listing, key), the handler returns that request
// again with `Idempotency-Replayed: true` instead of attempting a second
// booking (which would fail with 409 because the listing is already booked).
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/http/middleware"
	"github.com/tbourn/go-zerohunger-backend/internal/services"
)

//
// DTOs
//

// ListListingsResponse wraps a page of available listings.
type ListListingsResponse struct {
	Listings   []domain.Listing `json:"listings"`
	Pagination Pagination       `json:"pagination"`
}

// LocationsResponse lists distinct locations.
type LocationsResponse struct {
	Locations []string `json:"locations"`
}

// CategoriesResponse lists the accepted categories in display order.
type CategoriesResponse struct {
	Categories []domain.Category `json:"categories"`
}

// SubmitRequestRequest is the optional JSON payload of a food request.
type SubmitRequestRequest struct {
	// Message is a note to the provider (max 2000 characters).
	Message string `json:"message" example:"Picking up for a shelter of 12, thank you!"`
}

func listingQuery(c *gin.Context) services.ListingQuery {
	page, pageSize := clampPagination(c)
	return services.ListingQuery{
		Location: strings.TrimSpace(c.Query("location")),
		Category: strings.TrimSpace(c.Query("category")),
		Q:        strings.TrimSpace(c.Query("q")),
		Page:     page,
		PageSize: pageSize,
	}
}

//
// Handlers
//

// Categories godoc
// @ID          listCategories
// @Summary     List food categories
// @Tags        Listings
// @Produce     json
// @Success     200  {object}  handlers.CategoriesResponse
// @Router      /categories [get]
func (h *Handlers) Categories(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=3600")
	ok(c, http.StatusOK, CategoriesResponse{Categories: h.listings.Categories()})
}

// BrowseListings godoc
// @ID          browseListings
// @Summary     Browse available listings
// @Description Returns available listings, newest first, filtered by location and category
// @Description (case-insensitive exact match). q ranks results by keyword overlap.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Listings
// @Produce     json
// @Param       location       query   string  false "Exact location"                example(Colombo)
// @Param       category       query   string  false "Category"                      example(Rice)
// @Param       q              query   string  false "Keywords"                      example(fried rice)
// @Param       page           query   int     false "Page number"                   minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"                minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListListingsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /listings [get]
func (h *Handlers) BrowseListings(c *gin.Context) {
	ctx := c.Request.Context()
	q := listingQuery(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.listings.AvailableStats(ctx, q); err == nil {
		scope := strings.Join([]string{
			strings.ToLower(q.Location), strings.ToLower(q.Category), strings.ToLower(q.Q),
		}, "|")
		if notModified(c, "listings", scope+"|"+c.Query("page")+"|"+c.Query("page_size"), count, maxTS) {
			return
		}
	}

	res, err := h.listings.QueryAvailable(ctx, q)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListListingsResponse{
		Listings:   res.Items,
		Pagination: newPagination(res.Page, res.PageSize, res.Total),
	})
}

// ListingLocations godoc
// @ID          listingLocations
// @Summary     Locations with available food
// @Tags        Listings
// @Produce     json
// @Success     200  {object}  handlers.LocationsResponse
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /listings/locations [get]
func (h *Handlers) ListingLocations(c *gin.Context) {
	locs, err := h.listings.AvailableLocations(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LocationsResponse{Locations: locs})
}

// GetListing godoc
// @ID          getListing
// @Summary     Listing detail
// @Tags        Listings
// @Produce     json
// @Param       id  path  string  true  "Listing ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.Listing
// @Failure     404  {object}  handlers.ErrorResponse "Listing not found"
// @Router      /listings/{id} [get]
func (h *Handlers) GetListing(c *gin.Context) {
	l, err := h.listings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, l)
}

// SubmitRequest godoc
// @ID          submitRequest
// @Summary     Request a listing
// @Description Books an available listing for the current user. Exactly one of several
// @Description concurrent requests for the same listing succeeds; the rest get 409.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Listings
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       id               path    string  true  "Listing ID (UUID)"  format(uuid)
// @Param       body             body    handlers.SubmitRequestRequest  false  "Message to the provider"
// @Success     201  {object}  domain.FoodRequest
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous attempt"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Listing not found"
// @Failure     409  {object}  handlers.ErrorResponse "Listing not available"
// @Failure     429  {object}  handlers.ErrorResponse "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /listings/{id}/requests [post]
func (h *Handlers) SubmitRequest(c *gin.Context) {
	ctx := c.Request.Context()
	receiver := actor(c)

	var req SubmitRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	// Replay path.
	if id, found := h.replayID(c); found {
		if prev, err := h.requests.Get(ctx, id); err == nil && prev.ReceiverID == receiver {
			markReplayed(c)
			ok(c, http.StatusCreated, prev)
			return
		}
	}

	r, err := h.requests.SubmitRequest(ctx, c.Param("id"), receiver, req.Message)
	if err != nil {
		if errors.Is(err, services.ErrListingUnavailable) {
			middleware.LoggerFrom(c).Info().Str("listing_id", c.Param("id")).Msg("request rejected: listing unavailable")
		}
		failErr(c, err)
		return
	}
	h.remember(c, r.ID, http.StatusCreated)

	middleware.LoggerFrom(c).Info().
		Str("listing_id", r.ListingID).
		Str("food_request_id", r.ID).
		Msg("request submitted")
	ok(c, http.StatusCreated, r)
}
