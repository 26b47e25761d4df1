// Receiver HTTP handlers.
//
// This file exposes:
//   - GET /receiver/requests    (own requests with listing, assignment and delivery OTP)
//   - GET /receiver/dashboard   (own requests plus recently added listings)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-zerohunger-backend/internal/services"
)

// RequestViewsResponse wraps joined request views.
type RequestViewsResponse struct {
	Requests []services.RequestView `json:"requests"`
}

// ReceiverRequests godoc
// @ID          receiverRequests
// @Summary     My requests
// @Description Lists the current user's requests, oldest first. Once a courier has accepted,
// @Description the view carries the delivery OTP the receiver hands over at the door.
// @Tags        Receiver
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  handlers.RequestViewsResponse
// @Failure     401  {object}  handlers.ErrorResponse "Missing or invalid session"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /receiver/requests [get]
func (h *Handlers) ReceiverRequests(c *gin.Context) {
	ctx := c.Request.Context()
	reqs, err := h.requests.QueryByReceiver(ctx, actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	views, err := h.dashboards.RequestViews(ctx, reqs, services.ShowDeliveryOTP)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RequestViewsResponse{Requests: views})
}

// ReceiverDashboard godoc
// @ID          receiverDashboard
// @Summary     Receiver dashboard
// @Tags        Receiver
// @Security    BearerAuth
// @Produce     json
// @Success     200  {object}  services.ReceiverDashboard
// @Failure     401  {object}  handlers.ErrorResponse "Missing or invalid session"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /receiver/dashboard [get]
func (h *Handlers) ReceiverDashboard(c *gin.Context) {
	d, err := h.dashboards.Receiver(c.Request.Context(), actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}
