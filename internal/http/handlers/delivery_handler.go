// Delivery HTTP handlers.
//
// This file exposes:
//   - GET  /delivery/requests                    (pending requests, optional location filter)
//   - GET  /delivery/locations                   (distinct locations with pending requests)
//   - POST /delivery/requests/{id}/accept        (take a pending request, Idempotency-Key support)
//   - GET  /delivery/assignments                 (own assignments, newest first)
//   - GET  /delivery/assignments/{id}            (own assignment with status history)
//   - POST /delivery/assignments/{id}/pickup     (submit the pickup OTP)
//   - POST /delivery/assignments/{id}/deliver    (submit the delivery OTP)
//   - GET  /delivery/dashboard                   (assignments plus top pending requests)
//
// OTP routes sit behind a stricter rate limiter. Every rejected code gets the
// same 422 response so a courier learns nothing about why it failed.
package handlers

import (
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

// VerifyOTPRequest carries a six-digit code.
type VerifyOTPRequest struct {
	OTP string `json:"otp" binding:"required" example:"004211"`
}

// AssignmentsResponse wraps the courier's assignments.
type AssignmentsResponse struct {
	Assignments []domain.DeliveryAssignment `json:"assignments"`
}

//
// Handlers
//

// PickupRequests godoc
// @ID          pickupRequests
// @Summary     Requests waiting for a courier
// @Description Pending requests, oldest first, optionally at one location (case-insensitive).
// @Tags        Delivery
// @Security    BearerAuth
// @Produce     json
// @Param       location  query  string  false  "Listing location"  example(Colombo)
// @Success     200  {object}  handlers.RequestViewsResponse
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /delivery/requests [get]
func (h *Handlers) PickupRequests(c *gin.Context) {
	ctx := c.Request.Context()
	reqs, err := h.deliveries.ListAvailableForPickup(ctx, strings.TrimSpace(c.Query("location")))
	if err != nil {
		failErr(c, err)
		return
	}
	views, err := h.dashboards.RequestViews(ctx, reqs, services.HideOTP)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RequestViewsResponse{Requests: views})
}

// DeliveryLocations godoc
// @ID          deliveryLocations
// @Summary     Locations with pending requests
// @Tags        Delivery
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  handlers.LocationsResponse
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /delivery/locations [get]
func (h *Handlers) DeliveryLocations(c *gin.Context) {
	locs, err := h.deliveries.PendingLocations(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LocationsResponse{Locations: locs})
}

// AcceptRequest godoc
// @ID          acceptRequest
// @Summary     Accept a request for delivery
// @Description Assigns a pending request to the current user and creates its two OTPs.
// @Description Exactly one of several concurrent accepts succeeds; the rest get 409.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Delivery
// @Security    BearerAuth
// @Produce     json
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       id               path    string  true  "Request ID (UUID)"  format(uuid)
// @Success     201  {object}  domain.DeliveryAssignment
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous attempt"
// @Failure     404  {object}  handlers.ErrorResponse "Request not found"
// @Failure     409  {object}  handlers.ErrorResponse "Request is no longer pending"
// @Failure     429  {object}  handlers.ErrorResponse "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /delivery/requests/{id}/accept [post]
func (h *Handlers) AcceptRequest(c *gin.Context) {
	ctx := c.Request.Context()
	courier := actor(c)

	// Replay path.
	if id, found := h.replayID(c); found {
		if prev, err := h.deliveries.GetAssignment(ctx, id, courier); err == nil {
			markReplayed(c)
			ok(c, http.StatusCreated, prev.Assignment)
			return
		}
	}

	a, err := h.deliveries.Assign(ctx, c.Param("id"), courier)
	if err != nil {
		failErr(c, err)
		return
	}
	h.remember(c, a.ID, http.StatusCreated)

	middleware.LoggerFrom(c).Info().
		Str("assignment_id", a.ID).
		Str("food_request_id", a.RequestID).
		Msg("assignment created")
	ok(c, http.StatusCreated, a)
}

// Assignments godoc
// @ID          listAssignments
// @Summary     My assignments
// @Tags        Delivery
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  handlers.AssignmentsResponse
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /delivery/assignments [get]
func (h *Handlers) Assignments(c *gin.Context) {
	as, err := h.deliveries.ListByDeliveryPerson(c.Request.Context(), actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AssignmentsResponse{Assignments: as})
}

// Assignment godoc
// @ID          getAssignment
// @Summary     My assignment
// @Description Assignment with its request, listing and status history. OTPs are never included.
// @Tags        Delivery
// @Security    BearerAuth
// @Produce     json
// @Param       id  path  string  true  "Assignment ID (UUID)"  format(uuid)
// @Success     200  {object}  services.AssignmentDetail
// @Failure     404  {object}  handlers.ErrorResponse "Assignment not found"
// @Router      /delivery/assignments/{id} [get]
func (h *Handlers) Assignment(c *gin.Context) {
	d, err := h.deliveries.GetAssignment(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// Pickup godoc
// @ID          pickup
// @Summary     Confirm pickup
// @Description Submits the pickup OTP obtained from the provider. assigned → picked_up.
// @Tags        Delivery
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id    path  string                     true  "Assignment ID (UUID)"  format(uuid)
// @Param       body  body  handlers.VerifyOTPRequest  true  "Pickup OTP"
// @Success     200  {object}  domain.DeliveryAssignment
// @Failure     400  {object}  handlers.ErrorResponse "OTP is not six digits"
// @Failure     404  {object}  handlers.ErrorResponse "Assignment not found"
// @Failure     422  {object}  handlers.ErrorResponse "Invalid OTP"
// @Failure     429  {object}  handlers.ErrorResponse "Rate limited"
// @Router      /delivery/assignments/{id}/pickup [post]
func (h *Handlers) Pickup(c *gin.Context) { h.verifyOTP(c, services.PhasePickup) }

// Deliver godoc
// @ID          deliver
// @Summary     Confirm delivery
// @Description Submits the delivery OTP obtained from the receiver. picked_up → delivered;
// @Description the request becomes delivered in the same transaction.
// @Tags        Delivery
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id    path  string                     true  "Assignment ID (UUID)"  format(uuid)
// @Param       body  body  handlers.VerifyOTPRequest  true  "Delivery OTP"
// @Success     200  {object}  domain.DeliveryAssignment
// @Failure     400  {object}  handlers.ErrorResponse "OTP is not six digits"
// @Failure     404  {object}  handlers.ErrorResponse "Assignment not found"
// @Failure     422  {object}  handlers.ErrorResponse "Invalid OTP"
// @Failure     429  {object}  handlers.ErrorResponse "Rate limited"
// @Router      /delivery/assignments/{id}/deliver [post]
func (h *Handlers) Deliver(c *gin.Context) { h.verifyOTP(c, services.PhaseDelivery) }

func (h *Handlers) verifyOTP(c *gin.Context, phase services.OTPPhase) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "otp is required")
		return
	}

	id := c.Param("id")
	a, err := h.deliveries.VerifyOTP(c.Request.Context(), id, actor(c), strings.TrimSpace(req.OTP), phase)
	lg := middleware.LoggerFrom(c)
	if err != nil {
		lg.Warn().Str("assignment_id", id).Str("phase", string(phase)).Msg("otp rejected")
		failErr(c, err)
		return
	}
	lg.Info().Str("assignment_id", a.ID).Str("phase", string(phase)).Str("status", string(a.Status)).Msg("otp verified")
	ok(c, http.StatusOK, a)
}

// DeliveryDashboard godoc
// @ID          deliveryDashboard
// @Summary     Delivery dashboard
// @Tags        Delivery
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  services.DeliveryDashboard
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /delivery/dashboard [get]
func (h *Handlers) DeliveryDashboard(c *gin.Context) {
	d, err := h.dashboards.Delivery(c.Request.Context(), actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}
