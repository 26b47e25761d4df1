// Package services – DashboardService
//
// This file implements the read-only role views. Each dashboard joins
// requests with their listing and assignment and decides which OTP, if any,
// the viewer may see: providers see the pickup code they hand to the courier,
// receivers see the delivery code. Couriers never see either code through a
// dashboard.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/repo"
)

const (
	DefaultRecentLimit  = 6
	DefaultPendingLimit = 5
)

// OTPVisibility selects which assignment code a RequestView carries.
type OTPVisibility int

const (
	HideOTP OTPVisibility = iota
	ShowPickupOTP
	ShowDeliveryOTP
)

// RequestView is a request joined with its listing and assignment.
type RequestView struct {
	Request     domain.FoodRequest         `json:"request"`
	Listing     domain.Listing             `json:"listing"`
	Assignment  *domain.DeliveryAssignment `json:"assignment,omitempty"`
	PickupOTP   string                     `json:"pickup_otp,omitempty"`
	DeliveryOTP string                     `json:"delivery_otp,omitempty"`
}

// AssignmentView is an assignment joined with its request and listing.
type AssignmentView struct {
	Assignment domain.DeliveryAssignment `json:"assignment"`
	Request    domain.FoodRequest        `json:"request"`
	Listing    domain.Listing            `json:"listing"`
}

// ListingCounts aggregates a provider's listings by status.
type ListingCounts struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Booked    int64 `json:"booked"`
	Completed int64 `json:"completed"`
}

type ProviderDashboard struct {
	Counts   ListingCounts    `json:"counts"`
	Listings []domain.Listing `json:"listings"`
	Requests []RequestView    `json:"requests"`
}

type ReceiverDashboard struct {
	Requests []RequestView    `json:"requests"`
	Recent   []domain.Listing `json:"recent_listings"`
}

type DeliveryDashboard struct {
	Assignments []AssignmentView `json:"assignments"`
	Pending     []RequestView    `json:"pending_requests"`
}

// DashboardService derives role views. It never mutates state.
type DashboardService struct {
	DB          *gorm.DB
	Listings    ListingRepo
	Requests    RequestRepo
	Assignments AssignmentRepo

	RecentLimit  int
	PendingLimit int
}

// RequestViews joins reqs with their assignments, exposing the code selected
// by show.
func (s *DashboardService) RequestViews(ctx context.Context, reqs []domain.FoodRequest, show OTPVisibility) ([]RequestView, error) {
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	byReq, err := s.Assignments.AssignmentsByRequest(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	out := make([]RequestView, 0, len(reqs))
	for _, r := range reqs {
		v := RequestView{Request: r, Listing: r.Listing}
		if a, ok := byReq[r.ID]; ok {
			a := a
			v.Assignment = &a
			switch show {
			case ShowPickupOTP:
				v.PickupOTP = a.PickupOTP
			case ShowDeliveryOTP:
				v.DeliveryOTP = a.DeliveryOTP
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// Provider returns listing counts, own listings and requests against them,
// newest first.
func (s *DashboardService) Provider(ctx context.Context, providerID string) (*ProviderDashboard, error) {
	tr := otel.Tracer("services/DashboardService")
	ctx, span := tr.Start(ctx, "Provider",
		trace.WithAttributes(attribute.String("user.id", providerID)),
	)
	defer span.End()

	byStatus, err := s.Listings.CountListingsByStatus(ctx, s.DB, providerID)
	if err != nil {
		return nil, err
	}
	counts := ListingCounts{
		Available: byStatus[domain.ListingAvailable],
		Booked:    byStatus[domain.ListingBooked],
		Completed: byStatus[domain.ListingCompleted],
	}
	for _, n := range byStatus {
		counts.Total += n
	}

	listings, err := s.Listings.ListListingsByProvider(ctx, s.DB, providerID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.Requests.ListRequestsByProvider(ctx, s.DB, providerID, repo.NewestFirst)
	if err != nil {
		return nil, err
	}
	views, err := s.RequestViews(ctx, reqs, ShowPickupOTP)
	if err != nil {
		return nil, err
	}
	return &ProviderDashboard{Counts: counts, Listings: listings, Requests: views}, nil
}

// Receiver returns own requests (newest first) and the most recent available
// listings.
func (s *DashboardService) Receiver(ctx context.Context, receiverID string) (*ReceiverDashboard, error) {
	tr := otel.Tracer("services/DashboardService")
	ctx, span := tr.Start(ctx, "Receiver",
		trace.WithAttributes(attribute.String("user.id", receiverID)),
	)
	defer span.End()

	reqs, err := s.Requests.ListRequestsByReceiver(ctx, s.DB, receiverID, repo.NewestFirst)
	if err != nil {
		return nil, err
	}
	views, err := s.RequestViews(ctx, reqs, ShowDeliveryOTP)
	if err != nil {
		return nil, err
	}
	limit := s.RecentLimit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	recent, err := s.Listings.ListAvailableListings(ctx, s.DB, repo.ListingFilter{}, 0, limit)
	if err != nil {
		return nil, err
	}
	return &ReceiverDashboard{Requests: views, Recent: recent}, nil
}

// Delivery returns own assignments (newest first) and the oldest pending
// requests waiting for a courier.
func (s *DashboardService) Delivery(ctx context.Context, personID string) (*DeliveryDashboard, error) {
	tr := otel.Tracer("services/DashboardService")
	ctx, span := tr.Start(ctx, "Delivery",
		trace.WithAttributes(attribute.String("user.id", personID)),
	)
	defer span.End()

	as, err := s.Assignments.ListAssignmentsByDeliveryPerson(ctx, s.DB, personID, repo.NewestFirst)
	if err != nil {
		return nil, err
	}
	assignments := make([]AssignmentView, 0, len(as))
	for _, a := range as {
		assignments = append(assignments, AssignmentView{Assignment: a, Request: a.Request, Listing: a.Request.Listing})
	}

	limit := s.PendingLimit
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	pending, err := s.Requests.ListPendingRequests(ctx, s.DB, "", repo.OldestFirst, limit)
	if err != nil {
		return nil, err
	}
	views, err := s.RequestViews(ctx, pending, HideOTP)
	if err != nil {
		return nil, err
	}
	return &DeliveryDashboard{Assignments: assignments, Pending: views}, nil
}
