// Package services – ListingService
//
// This file implements ListingService, which owns food listings from creation
// to completion. Listings move only forward (available → booked → completed);
// booking happens in RequestService, completion here. Optional images are
// stored through a storage.ImageStore before the listing row is written and
// removed again if the row cannot be persisted.
//
// Observability: public methods open OpenTelemetry spans and created listings
// are counted in observability.ListingsCreated.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/events"
	"github.com/tbourn/go-zerohunger-backend/internal/observability"
	"github.com/tbourn/go-zerohunger-backend/internal/repo"
	"github.com/tbourn/go-zerohunger-backend/internal/search"
	"github.com/tbourn/go-zerohunger-backend/internal/storage"
	"github.com/tbourn/go-zerohunger-backend/internal/utils"
)

const (
	defaultPageSize = 20
	maxTitleRunes   = 255
)

// ListingInput carries the provider-supplied fields of a new listing.
type ListingInput struct {
	Title       string
	Description string
	Category    string
	ExpiryHours int
	Location    string
	ImageRef    *string
}

// ImageUpload is an image attached to a new listing.
type ImageUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// ListingQuery filters QueryAvailable. Empty fields match everything; Q is a
// free-text keyword filter over title, description and category.
type ListingQuery struct {
	Location string
	Category string
	Q        string
	Page     int
	PageSize int
}

// ListingPage is one page of QueryAvailable results.
type ListingPage struct {
	Items    []domain.Listing `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// ListingService coordinates listing persistence and search.
type ListingService struct {
	DB        *gorm.DB
	Listings  ListingRepo
	Events    EventRepo
	Images    storage.ImageStore
	Publisher events.Publisher

	MaxPageSize int
}

// LocationKey folds a location for case-insensitive exact matching.
func LocationKey(location string) string {
	return cases.Fold().String(strings.Join(strings.Fields(location), " "))
}

func (s *ListingService) validate(providerID string, in ListingInput) (*domain.Listing, error) {
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	loc := strings.Join(strings.Fields(in.Location), " ")
	if providerID == "" || title == "" || desc == "" || loc == "" {
		return nil, ErrInvalidInput
	}
	if len([]rune(title)) > maxTitleRunes {
		return nil, ErrInvalidInput
	}
	cat, ok := domain.ParseCategory(in.Category)
	if !ok {
		return nil, ErrInvalidCategory
	}
	if in.ExpiryHours <= 0 {
		return nil, ErrInvalidExpiry
	}
	return &domain.Listing{
		ID:          uuid.NewString(),
		Title:       title,
		Description: desc,
		Category:    cat,
		ExpiryHours: in.ExpiryHours,
		Location:    loc,
		LocationKey: LocationKey(loc),
		ProviderID:  providerID,
		ImageRef:    in.ImageRef,
		Status:      domain.ListingAvailable,
	}, nil
}

// CreateListing validates in and persists a new available listing.
func (s *ListingService) CreateListing(ctx context.Context, providerID string, in ListingInput) (*domain.Listing, error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "CreateListing",
		trace.WithAttributes(attribute.String("user.id", providerID)),
	)
	defer span.End()

	l, err := s.validate(providerID, in)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, l); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("listing.id", l.ID))
	return l, nil
}

// CreateListingWithImage stores up first and then creates the listing with
// the resulting reference. A nil upload behaves like CreateListing. If the
// listing cannot be persisted the stored image is deleted again.
func (s *ListingService) CreateListingWithImage(ctx context.Context, providerID string, in ListingInput, up *ImageUpload) (*domain.Listing, error) {
	if up == nil {
		return s.CreateListing(ctx, providerID, in)
	}
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "CreateListingWithImage",
		trace.WithAttributes(attribute.String("user.id", providerID)),
	)
	defer span.End()

	l, err := s.validate(providerID, in)
	if err != nil {
		return nil, err
	}
	name, err := storage.ObjectName(up.Filename)
	if err != nil {
		return nil, ErrInvalidImage
	}
	if s.Images == nil {
		return nil, errors.New("image storage is not configured")
	}
	ref, err := s.Images.Save(ctx, name, up.Body, up.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	l.ImageRef = &ref

	if err := s.persist(ctx, l); err != nil {
		if derr := s.Images.Delete(context.WithoutCancel(ctx), ref); derr != nil {
			log.Warn().Err(derr).Str("image_ref", ref).Msg("orphaned listing image")
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("listing.id", l.ID))
	return l, nil
}

func (s *ListingService) persist(ctx context.Context, l *domain.Listing) error {
	batch := &eventBatch{repo: s.Events}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Listings.CreateListing(ctx, tx, l); err != nil {
			return err
		}
		return batch.add(ctx, tx, domain.EntityListing, l.ID, "", string(l.Status), l.ProviderID)
	})
	if err != nil {
		return err
	}
	observability.ListingsCreated.Inc()
	batch.publish(ctx, s.Publisher)
	return nil
}

// QueryAvailable returns available listings matching q, newest first. When
// q.Q is set the matches are ranked by keyword overlap instead, with ties
// kept newest first.
func (s *ListingService) QueryAvailable(ctx context.Context, q ListingQuery) (*ListingPage, error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "QueryAvailable",
		trace.WithAttributes(
			attribute.String("location", q.Location),
			attribute.String("category", q.Category),
			attribute.Int("page", q.Page),
		),
	)
	defer span.End()

	page, size := s.pageBounds(q.Page, q.PageSize)
	out := &ListingPage{Items: []domain.Listing{}, Page: page, PageSize: size}

	f, ok := listingFilter(q)
	if !ok {
		// Unknown category matches nothing.
		return out, nil
	}
	offset := utils.Offset(page, size)

	if strings.TrimSpace(q.Q) == "" {
		total, err := s.Listings.CountAvailableListings(ctx, s.DB, f)
		if err != nil {
			return nil, err
		}
		out.Total = total
		if total == 0 {
			return out, nil
		}
		items, err := s.Listings.ListAvailableListings(ctx, s.DB, f, offset, size)
		if err != nil {
			return nil, err
		}
		out.Items = items
		return out, nil
	}

	all, err := s.Listings.ListAvailableListings(ctx, s.DB, f, 0, 0)
	if err != nil {
		return nil, err
	}
	ranked := rankListings(all, q.Q)
	out.Total = int64(len(ranked))
	if offset < len(ranked) {
		end := offset + size
		if end > len(ranked) {
			end = len(ranked)
		}
		out.Items = ranked[offset:end]
	}
	return out, nil
}

// AvailableStats returns the count and latest update among listings matching
// q, for conditional responses.
func (s *ListingService) AvailableStats(ctx context.Context, q ListingQuery) (int64, *time.Time, error) {
	f, ok := listingFilter(q)
	if !ok {
		return 0, nil, nil
	}
	return repo.AvailableListingsStats(ctx, s.DB, f)
}

// ProviderStats returns the count and latest update among a provider's
// listings, for conditional responses.
func (s *ListingService) ProviderStats(ctx context.Context, providerID string) (int64, *time.Time, error) {
	return repo.ProviderListingsStats(ctx, s.DB, providerID)
}

func listingFilter(q ListingQuery) (repo.ListingFilter, bool) {
	f := repo.ListingFilter{LocationKey: LocationKey(q.Location)}
	if c := strings.TrimSpace(q.Category); c != "" {
		cat, ok := domain.ParseCategory(c)
		if !ok {
			return f, false
		}
		f.Category = cat
	}
	return f, true
}

func rankListings(ls []domain.Listing, q string) []domain.Listing {
	docs := make([]search.Document, len(ls))
	byID := make(map[string]domain.Listing, len(ls))
	for i, l := range ls {
		docs[i] = search.Document{ID: l.ID, Title: l.Title, Body: l.Description + " " + string(l.Category)}
		byID[l.ID] = l
	}
	idx := search.NewIndex(docs, search.WithStopwords(search.DefaultStopwords))
	res := idx.TopK(q, 0)
	out := make([]domain.Listing, 0, len(res))
	for _, r := range res {
		out = append(out, byID[r.ID])
	}
	return out
}

func (s *ListingService) pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if s.MaxPageSize > 0 && size > s.MaxPageSize {
		size = s.MaxPageSize
	}
	return page, size
}

// MarkCompleted moves a booked listing owned by providerID to completed.
// Listings of other providers are reported as ErrNotFound.
func (s *ListingService) MarkCompleted(ctx context.Context, listingID, providerID string) (*domain.Listing, error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "MarkCompleted",
		trace.WithAttributes(
			attribute.String("listing.id", listingID),
			attribute.String("user.id", providerID),
		),
	)
	defer span.End()

	l, err := s.GetOwned(ctx, listingID, providerID)
	if err != nil {
		return nil, err
	}
	next, err := l.Status.Complete()
	if err != nil {
		return nil, err
	}

	batch := &eventBatch{repo: s.Events}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.Listings.TransitionListing(ctx, tx, l.ID, l.Status, next, nil)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("listing %s changed concurrently: %w", l.ID, ErrInvalidTransition)
		}
		if err := batch.add(ctx, tx, domain.EntityListing, l.ID, string(l.Status), string(next), providerID); err != nil {
			return err
		}
		l, err = s.Listings.GetListing(ctx, tx, l.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	batch.publish(ctx, s.Publisher)
	return l, nil
}

// Get returns any listing by id.
func (s *ListingService) Get(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := s.Listings.GetListing(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return l, err
}

// GetOwned returns the listing only when providerID owns it.
func (s *ListingService) GetOwned(ctx context.Context, id, providerID string) (*domain.Listing, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.ProviderID != providerID {
		return nil, ErrNotFound
	}
	return l, nil
}

// ListByProvider returns a provider's listings, newest first.
func (s *ListingService) ListByProvider(ctx context.Context, providerID string) ([]domain.Listing, error) {
	return s.Listings.ListListingsByProvider(ctx, s.DB, providerID)
}

// AvailableLocations returns the distinct locations of available listings.
func (s *ListingService) AvailableLocations(ctx context.Context) ([]string, error) {
	return s.Listings.DistinctAvailableLocations(ctx, s.DB)
}

// Categories returns the accepted category names in display order.
func (s *ListingService) Categories() []domain.Category {
	out := make([]domain.Category, len(domain.Categories))
	copy(out, domain.Categories)
	return out
}
