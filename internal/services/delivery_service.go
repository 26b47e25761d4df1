// Package services – DeliveryService
//
// This file implements DeliveryService: couriers accept pending requests,
// which creates an assignment carrying two one-time codes, and then prove
// pickup and delivery by submitting those codes. The pickup code is held by
// the provider and the delivery code by the receiver.
//
// Every rejected code submission returns the same ErrOTPMismatch whatever the
// cause, so a caller cannot learn which part of the check failed.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/events"
	"github.com/tbourn/go-zerohunger-backend/internal/observability"
	"github.com/tbourn/go-zerohunger-backend/internal/repo"
)

// DeliveryService assigns requests to couriers and verifies OTPs.
type DeliveryService struct {
	DB          *gorm.DB
	Requests    RequestRepo
	Assignments AssignmentRepo
	Events      EventRepo
	Publisher   events.Publisher

	// GenerateOTP defaults to the crypto/rand generator when nil.
	GenerateOTP OTPGenerator
}

// AssignmentDetail is an assignment with its recorded status history.
type AssignmentDetail struct {
	Assignment domain.DeliveryAssignment `json:"assignment"`
	Request    domain.FoodRequest        `json:"request"`
	Listing    domain.Listing            `json:"listing"`
	History    []domain.StatusEvent      `json:"history"`
}

// ListAvailableForPickup returns pending requests, oldest first, optionally
// restricted to listings at location (case-insensitive).
func (s *DeliveryService) ListAvailableForPickup(ctx context.Context, location string) ([]domain.FoodRequest, error) {
	return s.Requests.ListPendingRequests(ctx, s.DB, LocationKey(location), repo.OldestFirst, 0)
}

// PendingLocations returns the distinct locations that have pending requests.
func (s *DeliveryService) PendingLocations(ctx context.Context) ([]string, error) {
	return s.Requests.DistinctPendingLocations(ctx, s.DB)
}

// Assign hands a pending request to personID.
//
// Errors:
//   - ErrNotFound if the request does not exist
//   - ErrInvalidTransition if it is no longer pending (including losing a race)
func (s *DeliveryService) Assign(ctx context.Context, requestID, personID string) (*domain.DeliveryAssignment, error) {
	tr := otel.Tracer("services/DeliveryService")
	ctx, span := tr.Start(ctx, "Assign",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("user.id", personID),
		),
	)
	defer span.End()

	if personID == "" {
		return nil, ErrInvalidInput
	}
	gen := s.GenerateOTP
	if gen == nil {
		gen = GenerateOTP
	}
	pickup, err := gen()
	if err != nil {
		return nil, fmt.Errorf("generate pickup otp: %w", err)
	}
	delivery, err := gen()
	if err != nil {
		return nil, fmt.Errorf("generate delivery otp: %w", err)
	}
	next, err := domain.RequestPending.AssignForDelivery()
	if err != nil {
		return nil, err
	}

	var out *domain.DeliveryAssignment
	batch := &eventBatch{repo: s.Events}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.Requests.TransitionRequest(ctx, tx, requestID, domain.RequestPending, next, map[string]any{
			"assigned_delivery_person": personID,
		})
		if err != nil {
			return err
		}
		if !ok {
			r, err := s.Requests.GetRequest(ctx, tx, requestID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("request is %s: %w", r.Status, ErrInvalidTransition)
		}

		a := &domain.DeliveryAssignment{
			ID:               uuid.NewString(),
			RequestID:        requestID,
			DeliveryPersonID: personID,
			Status:           domain.AssignmentAssigned,
			PickupOTP:        pickup,
			DeliveryOTP:      delivery,
		}
		if err := s.Assignments.CreateAssignment(ctx, tx, a); err != nil {
			if repo.IsUniqueViolation(err) {
				return fmt.Errorf("request already assigned: %w", ErrInvalidTransition)
			}
			return err
		}
		if err := batch.add(ctx, tx, domain.EntityRequest, requestID, string(domain.RequestPending), string(next), personID); err != nil {
			return err
		}
		if err := batch.add(ctx, tx, domain.EntityAssignment, a.ID, "", string(a.Status), personID); err != nil {
			return err
		}
		out, err = s.Assignments.GetAssignment(ctx, tx, a.ID)
		return err
	})
	switch {
	case err == nil:
		observability.Assignments.WithLabelValues(observability.ResultOK).Inc()
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotFound):
		observability.Assignments.WithLabelValues(observability.ResultRejected).Inc()
		return nil, err
	default:
		observability.Assignments.WithLabelValues(observability.ResultError).Inc()
		return nil, err
	}

	span.SetAttributes(attribute.String("assignment.id", out.ID))
	batch.publish(ctx, s.Publisher)
	return out, nil
}

// VerifyOTP checks code against the assignment's code for phase and advances
// the assignment. A verified delivery code also moves the request to
// delivered in the same transaction.
//
// Errors:
//   - ErrInvalidInput for an unknown phase
//   - ErrInvalidOTPFormat unless code is exactly six digits
//   - ErrNotFound if the assignment does not exist
//   - ErrUnauthorized if actorID is not the assigned courier
//   - ErrOTPMismatch for every other rejection
func (s *DeliveryService) VerifyOTP(ctx context.Context, assignmentID, actorID, code string, phase OTPPhase) (*domain.DeliveryAssignment, error) {
	tr := otel.Tracer("services/DeliveryService")
	ctx, span := tr.Start(ctx, "VerifyOTP",
		trace.WithAttributes(
			attribute.String("assignment.id", assignmentID),
			attribute.String("user.id", actorID),
			attribute.String("otp.phase", string(phase)),
		),
	)
	defer span.End()

	if _, ok := ParsePhase(string(phase)); !ok {
		return nil, ErrInvalidInput
	}
	if !ValidOTPFormat(code) {
		return nil, ErrInvalidOTPFormat
	}
	a, err := s.Assignments.GetAssignment(ctx, s.DB, assignmentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.DeliveryPersonID != actorID {
		return nil, ErrUnauthorized
	}

	var (
		expected string
		next     domain.AssignmentStatus
		terr     error
		stampCol string
	)
	switch phase {
	case PhasePickup:
		expected, stampCol = a.PickupOTP, "picked_up_at"
		next, terr = a.Status.PickUp()
	case PhaseDelivery:
		expected, stampCol = a.DeliveryOTP, "delivered_at"
		next, terr = a.Status.Deliver()
	}
	match := otpEqual(expected, code)
	if !match || terr != nil {
		observability.OTPVerifications.WithLabelValues(string(phase), observability.ResultRejected).Inc()
		return nil, ErrOTPMismatch
	}

	var out *domain.DeliveryAssignment
	batch := &eventBatch{repo: s.Events}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.Assignments.TransitionAssignment(ctx, tx, a.ID, a.Status, next, map[string]any{
			stampCol: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrOTPMismatch
		}
		if err := batch.add(ctx, tx, domain.EntityAssignment, a.ID, string(a.Status), string(next), actorID); err != nil {
			return err
		}

		if phase == PhaseDelivery {
			delivered, err := domain.RequestAssigned.Deliver()
			if err != nil {
				return err
			}
			ok, err := s.Requests.TransitionRequest(ctx, tx, a.RequestID, domain.RequestAssigned, delivered, nil)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("request %s not assigned for delivery: %w", a.RequestID, ErrInvalidTransition)
			}
			if err := batch.add(ctx, tx, domain.EntityRequest, a.RequestID, string(domain.RequestAssigned), string(delivered), actorID); err != nil {
				return err
			}
		}
		out, err = s.Assignments.GetAssignment(ctx, tx, a.ID)
		return err
	})
	switch {
	case err == nil:
		observability.OTPVerifications.WithLabelValues(string(phase), observability.ResultOK).Inc()
	case errors.Is(err, ErrOTPMismatch):
		observability.OTPVerifications.WithLabelValues(string(phase), observability.ResultRejected).Inc()
		return nil, err
	default:
		observability.OTPVerifications.WithLabelValues(string(phase), observability.ResultError).Inc()
		return nil, err
	}

	batch.publish(ctx, s.Publisher)
	return out, nil
}

// GetAssignment returns the assignment with its history when actorID is the
// assigned courier; otherwise ErrNotFound.
func (s *DeliveryService) GetAssignment(ctx context.Context, id, actorID string) (*AssignmentDetail, error) {
	tr := otel.Tracer("services/DeliveryService")
	ctx, span := tr.Start(ctx, "GetAssignment",
		trace.WithAttributes(attribute.String("assignment.id", id)),
	)
	defer span.End()

	a, err := s.Assignments.GetAssignment(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.DeliveryPersonID != actorID {
		return nil, ErrNotFound
	}
	hist, err := s.Events.ListStatusEvents(ctx, s.DB, domain.EntityAssignment, a.ID)
	if err != nil {
		return nil, err
	}
	return &AssignmentDetail{
		Assignment: *a,
		Request:    a.Request,
		Listing:    a.Request.Listing,
		History:    hist,
	}, nil
}

// ListByDeliveryPerson returns a courier's assignments, newest first.
func (s *DeliveryService) ListByDeliveryPerson(ctx context.Context, personID string) ([]domain.DeliveryAssignment, error) {
	return s.Assignments.ListAssignmentsByDeliveryPerson(ctx, s.DB, personID, repo.NewestFirst)
}
