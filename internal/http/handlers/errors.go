// Error codes and the mapping from service errors. Ownership failures are
// reported as not_found so callers cannot probe for other users' listings or
// assignments, and every rejected OTP gets the same otp_invalid answer.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-zerohunger-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeOTPInvalid       = "otp_invalid"
	ErrCodeTooLarge         = "payload_too_large"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failErr maps a service error onto the response envelope. Validation errors
// keep their message (it is written for users); everything unexpected becomes
// a logged 500 whose message does not leak internals.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired session")
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "not found")
	case errors.Is(err, services.ErrListingUnavailable):
		fail(c, http.StatusConflict, ErrCodeConflict, services.ErrListingUnavailable.Error())
	case errors.Is(err, services.ErrDuplicateIdentity):
		fail(c, http.StatusConflict, ErrCodeConflict, services.ErrDuplicateIdentity.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeConflict, "operation not allowed in the current status")
	case errors.Is(err, services.ErrOTPMismatch):
		fail(c, http.StatusUnprocessableEntity, ErrCodeOTPInvalid, services.ErrOTPMismatch.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
