// Provider HTTP handlers.
//
// This file exposes:
//   - GET  /provider/listings                (own listings, newest first, ETag support)
//   - POST /provider/listings                (create; JSON, or multipart with an "image" file)
//   - GET  /provider/listings/{id}           (own listing detail)
//   - POST /provider/listings/{id}/complete  (booked → completed)
//   - GET  /provider/requests                (requests on own listings, with pickup OTP)
//   - GET  /provider/dashboard               (counts, listings and requests)
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/http/middleware"
	"github.com/tbourn/go-zerohunger-backend/internal/services"
)

//
// DTOs
//

// CreateListingRequest is the payload for a new listing. Multipart requests
// send the same fields as form values plus an optional "image" file. Field
// validation happens in the service so messages stay specific.
type CreateListingRequest struct {
	Title       string `json:"title"        form:"title"        example:"Vegetable fried rice"`
	Description string `json:"description"  form:"description"  example:"About 20 portions, packed in boxes"`
	Category    string `json:"category"     form:"category"     example:"Rice"`
	ExpiryHours int    `json:"expiry_hours" form:"expiry_hours" example:"4"`
	Location    string `json:"location"     form:"location"     example:"Colombo"`
}

// ProviderListingsResponse wraps the provider's listings.
type ProviderListingsResponse struct {
	Listings []domain.Listing `json:"listings"`
}

func (r CreateListingRequest) input() services.ListingInput {
	return services.ListingInput{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		ExpiryHours: r.ExpiryHours,
		Location:    r.Location,
	}
}

//
// Handlers
//

// ProviderListings godoc
// @ID          providerListings
// @Summary     My listings
// @Description Lists the current user's listings, newest first. Supports weak ETag via If-None-Match.
// @Tags        Provider
// @Security    BearerAuth
// @Produce     json
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ProviderListingsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse "Missing or invalid session"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /provider/listings [get]
func (h *Handlers) ProviderListings(c *gin.Context) {
	ctx := c.Request.Context()
	uid := actor(c)

	if count, maxTS, err := h.listings.ProviderStats(ctx, uid); err == nil {
		if notModified(c, "provider-listings", uid, count, maxTS) {
			return
		}
	}

	ls, err := h.listings.ListByProvider(ctx, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ProviderListingsResponse{Listings: ls})
}

// CreateListing godoc
// @ID          createListing
// @Summary     Create a listing
// @Description Creates an available listing. Send JSON, or multipart/form-data with the same
// @Description fields and an optional "image" (png, jpg, jpeg, gif, webp).
// @Tags        Provider
// @Security    BearerAuth
// @Accept      json
// @Accept      mpfd
// @Produce     json
// @Param       body   body      handlers.CreateListingRequest  false  "Listing (JSON)"
// @Param       image  formData  file                           false  "Image (multipart only)"
// @Success     201  {object}  domain.Listing
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Missing or invalid session"
// @Failure     413  {object}  handlers.ErrorResponse "Image too large"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /provider/listings [post]
func (h *Handlers) CreateListing(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreateListingRequest

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
				return
			}
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid form fields")
			return
		}
		fh, err := c.FormFile("image")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid multipart body")
			return
		}
		if fh != nil {
			if fh.Size > h.maxUpload {
				fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "image exceeds "+strconv.FormatInt(h.maxUpload, 10)+" bytes")
				return
			}
			f, err := fh.Open()
			if err != nil {
				fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read image")
				return
			}
			defer f.Close()

			l, err := h.listings.CreateListingWithImage(ctx, actor(c), req.input(), &services.ImageUpload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Body:        f,
			})
			if err != nil {
				failErr(c, err)
				return
			}
			h.created(c, l)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	l, err := h.listings.CreateListing(ctx, actor(c), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	h.created(c, l)
}

func (h *Handlers) created(c *gin.Context, l *domain.Listing) {
	middleware.LoggerFrom(c).Info().
		Str("listing_id", l.ID).
		Str("category", string(l.Category)).
		Bool("image", l.ImageRef != nil).
		Msg("listing created")
	c.Header("Location", c.FullPath()+"/"+l.ID)
	ok(c, http.StatusCreated, l)
}

// ProviderListing godoc
// @ID          providerListing
// @Summary     My listing
// @Tags        Provider
// @Security    BearerAuth
// @Produce     json
// @Param       id  path  string  true  "Listing ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.Listing
// @Failure     404  {object}  handlers.ErrorResponse "Listing not found"
// @Router      /provider/listings/{id} [get]
func (h *Handlers) ProviderListing(c *gin.Context) {
	l, err := h.listings.GetOwned(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, l)
}

// CompleteListing godoc
// @ID          completeListing
// @Summary     Mark a listing completed
// @Description Moves a booked listing to completed. Only the owner may do this.
// @Tags        Provider
// @Security    BearerAuth
// @Produce     json
// @Param       id  path  string  true  "Listing ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.Listing
// @Failure     404  {object}  handlers.ErrorResponse "Listing not found"
// @Failure     409  {object}  handlers.ErrorResponse "Listing is not booked"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /provider/listings/{id}/complete [post]
func (h *Handlers) CompleteListing(c *gin.Context) {
	l, err := h.listings.MarkCompleted(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.LoggerFrom(c).Info().Str("listing_id", l.ID).Msg("listing completed")
	ok(c, http.StatusOK, l)
}

// ProviderRequests godoc
// @ID          providerRequests
// @Summary     Requests on my listings
// @Description Lists requests against the current user's listings, oldest first. Once a courier
// @Description has accepted, the view carries the pickup OTP the provider hands to the courier.
// @Tags        Provider
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  handlers.RequestViewsResponse
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /provider/requests [get]
func (h *Handlers) ProviderRequests(c *gin.Context) {
	ctx := c.Request.Context()
	reqs, err := h.requests.QueryByProvider(ctx, actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	views, err := h.dashboards.RequestViews(ctx, reqs, services.ShowPickupOTP)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RequestViewsResponse{Requests: views})
}

// ProviderDashboard godoc
// @ID          providerDashboard
// @Summary     Provider dashboard
// @Tags        Provider
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  services.ProviderDashboard
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /provider/dashboard [get]
func (h *Handlers) ProviderDashboard(c *gin.Context) {
	d, err := h.dashboards.Provider(c.Request.Context(), actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}
