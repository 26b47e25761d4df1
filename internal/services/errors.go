// Package services defines the business logic for identity, listings, food
// requests, delivery assignments and dashboards. This file centralizes the
// service-level error values so that they can be consistently returned by
// service methods and checked by callers with errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

var (
	// ErrNotFound indicates that no entity exists with the given id, or that
	// it is not visible to the acting user.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the actor does not own the entity being
	// mutated. Handlers report it like ErrNotFound so existence is not leaked.
	ErrUnauthorized = errors.New("not permitted for this user")

	// ErrInvalidTransition is returned when a status precondition is not met.
	ErrInvalidTransition = domain.ErrInvalidTransition

	// ErrDuplicateIdentity is returned when a username or email is taken.
	ErrDuplicateIdentity = errors.New("username or email already registered")

	// ErrInvalidInput is the parent of every validation failure below.
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidCategory  = fmt.Errorf("%w: unknown category", ErrInvalidInput)
	ErrInvalidExpiry    = fmt.Errorf("%w: expiry hours must be positive", ErrInvalidInput)
	ErrInvalidOTPFormat = fmt.Errorf("%w: otp must be exactly 6 digits", ErrInvalidInput)
	ErrInvalidImage     = fmt.Errorf("%w: image must be png, jpg, jpeg, gif or webp", ErrInvalidInput)
	ErrWeakPassword     = fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)

	// ErrListingUnavailable is returned by SubmitRequest when the listing is
	// no longer available.
	ErrListingUnavailable = errors.New("listing is not available")

	// ErrOTPMismatch is the single failure for every rejected OTP submission:
	// wrong code, wrong phase, already verified or a lost race.
	ErrOTPMismatch = errors.New("invalid OTP")

	// ErrInvalidCredentials is returned by Authenticate for an unknown user
	// and for a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrSessionNotFound is returned for unknown, revoked or expired tokens.
	ErrSessionNotFound = errors.New("session not found or expired")
)
