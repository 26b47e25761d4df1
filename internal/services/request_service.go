// Package services – RequestService
//
// This file implements RequestService, the ledger of receiver requests. A
// request is admitted only by winning the listing's available → booked
// compare-and-set, so at most one request is ever admitted per listing no
// matter how many receivers submit concurrently.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

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

const maxMessageRunes = 2000

// RequestService admits and lists food requests.
type RequestService struct {
	DB        *gorm.DB
	Listings  ListingRepo
	Requests  RequestRepo
	Events    EventRepo
	Publisher events.Publisher
}

// SubmitRequest books listingID for receiverID and records a pending request.
//
// Errors:
//   - ErrNotFound if the listing does not exist
//   - ErrListingUnavailable if it is booked or completed (including losing a race)
func (s *RequestService) SubmitRequest(ctx context.Context, listingID, receiverID, message string) (*domain.FoodRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "SubmitRequest",
		trace.WithAttributes(
			attribute.String("listing.id", listingID),
			attribute.String("user.id", receiverID),
		),
	)
	defer span.End()

	message = strings.TrimSpace(message)
	if receiverID == "" || utf8.RuneCountInString(message) > maxMessageRunes {
		return nil, ErrInvalidInput
	}
	booked, err := domain.ListingAvailable.Book()
	if err != nil {
		return nil, err
	}

	var out *domain.FoodRequest
	batch := &eventBatch{repo: s.Events}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Admission gate: the first writer wins, everyone else sees ok=false.
		ok, err := s.Listings.TransitionListing(ctx, tx, listingID, domain.ListingAvailable, booked, map[string]any{
			"requested_by": receiverID,
			"requested_at": time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if !ok {
			if _, err := s.Listings.GetListing(ctx, tx, listingID); errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			} else if err != nil {
				return err
			}
			return ErrListingUnavailable
		}

		r := &domain.FoodRequest{
			ID:         uuid.NewString(),
			ListingID:  listingID,
			ReceiverID: receiverID,
			Message:    message,
			Status:     domain.RequestPending,
		}
		if err := s.Requests.CreateRequest(ctx, tx, r); err != nil {
			return err
		}
		if err := batch.add(ctx, tx, domain.EntityListing, listingID, string(domain.ListingAvailable), string(booked), receiverID); err != nil {
			return err
		}
		if err := batch.add(ctx, tx, domain.EntityRequest, r.ID, "", string(r.Status), receiverID); err != nil {
			return err
		}
		out, err = s.Requests.GetRequest(ctx, tx, r.ID)
		return err
	})
	switch {
	case err == nil:
		observability.RequestAdmissions.WithLabelValues(observability.ResultOK).Inc()
	case errors.Is(err, ErrListingUnavailable), errors.Is(err, ErrNotFound):
		observability.RequestAdmissions.WithLabelValues(observability.ResultRejected).Inc()
		return nil, err
	default:
		observability.RequestAdmissions.WithLabelValues(observability.ResultError).Inc()
		return nil, err
	}

	span.SetAttributes(attribute.String("request.id", out.ID))
	batch.publish(ctx, s.Publisher)
	return out, nil
}

// QueryByReceiver returns a receiver's requests, oldest first.
func (s *RequestService) QueryByReceiver(ctx context.Context, receiverID string) ([]domain.FoodRequest, error) {
	return s.Requests.ListRequestsByReceiver(ctx, s.DB, receiverID, repo.OldestFirst)
}

// QueryByProvider returns the requests made against a provider's listings,
// oldest first.
func (s *RequestService) QueryByProvider(ctx context.Context, providerID string) ([]domain.FoodRequest, error) {
	return s.Requests.ListRequestsByProvider(ctx, s.DB, providerID, repo.OldestFirst)
}

// Get returns a request with its listing.
func (s *RequestService) Get(ctx context.Context, id string) (*domain.FoodRequest, error) {
	r, err := s.Requests.GetRequest(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return r, err
}
