package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/repo"
)

type fakeImages struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
	failErr error
}

func (f *fakeImages) Save(_ context.Context, name string, r io.Reader, _ string) (string, error) {
	if f.failErr != nil {
		return "", f.failErr
	}
	b, _ := io.ReadAll(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[name] = b
	return "/uploads/" + name, nil
}

func (f *fakeImages) Delete(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

// failingListings refuses every insert.
type failingListings struct{ repo.Store }

func (failingListings) CreateListing(context.Context, *gorm.DB, *domain.Listing) error {
	return errors.New("disk full")
}

func validInput() ListingInput {
	return ListingInput{Title: "Bread", Description: "Loaves", Category: "Bread", ExpiryHours: 3, Location: "Kandy"}
}

func TestListing_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		mod  func(*ListingInput)
		want error
	}{
		{"unknown category", func(in *ListingInput) { in.Category = "Pizza" }, ErrInvalidCategory},
		{"zero expiry", func(in *ListingInput) { in.ExpiryHours = 0 }, ErrInvalidExpiry},
		{"negative expiry", func(in *ListingInput) { in.ExpiryHours = -1 }, ErrInvalidExpiry},
		{"blank title", func(in *ListingInput) { in.Title = "  " }, ErrInvalidInput},
		{"blank location", func(in *ListingInput) { in.Location = "" }, ErrInvalidInput},
	}
	for _, c := range cases {
		in := validInput()
		c.mod(&in)
		_, err := f.listings.CreateListing(ctx, "p1", in)
		if !errors.Is(err, c.want) || !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestListing_CreateCanonicalisesAndRecords(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Category = "  bReAd "
	in.Location = "  Kandy   Town "

	l, err := f.listings.CreateListing(context.Background(), "p1", in)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	if l.Category != "Bread" || l.Status != domain.ListingAvailable {
		t.Fatalf("unexpected listing: %+v", l)
	}
	if l.Location != "Kandy Town" || l.LocationKey != "kandy town" {
		t.Fatalf("location = %q key = %q", l.Location, l.LocationKey)
	}
	if f.pub.count(domain.EntityListing, "available") != 1 {
		t.Fatalf("creation event not published")
	}
}

func TestListing_QueryAvailableFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.listing(t, "p1", "Colombo")
	b := f.listing(t, "p1", "Kandy")
	in := validInput()
	in.Location = "COLOMBO"
	c, _ := f.listings.CreateListing(ctx, "p2", in)

	// Booked listings disappear from browse.
	if _, err := f.requests.SubmitRequest(ctx, b.ID, "r1", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	all, err := f.listings.QueryAvailable(ctx, ListingQuery{})
	if err != nil {
		t.Fatalf("QueryAvailable: %v", err)
	}
	if all.Total != 2 || all.Items[0].ID != c.ID || all.Items[1].ID != a.ID {
		t.Fatalf("expected [c a], got %+v", all.Items)
	}

	col, _ := f.listings.QueryAvailable(ctx, ListingQuery{Location: "colombo"})
	if col.Total != 2 {
		t.Fatalf("case-insensitive location: got %d", col.Total)
	}

	rice, _ := f.listings.QueryAvailable(ctx, ListingQuery{Location: "colombo", Category: "RICE"})
	if rice.Total != 1 || rice.Items[0].ID != a.ID {
		t.Fatalf("location+category: got %+v", rice.Items)
	}

	none, err := f.listings.QueryAvailable(ctx, ListingQuery{Category: "Pizza"})
	if err != nil || none.Total != 0 || len(none.Items) != 0 {
		t.Fatalf("unknown category should match nothing: %+v %v", none, err)
	}
}

func TestListing_QueryAvailablePaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.listing(t, "p1", "Galle")
	}
	p, err := f.listings.QueryAvailable(ctx, ListingQuery{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("QueryAvailable: %v", err)
	}
	if p.Total != 5 || len(p.Items) != 2 || p.Page != 2 || p.PageSize != 2 {
		t.Fatalf("unexpected page: total=%d items=%d", p.Total, len(p.Items))
	}
	p, _ = f.listings.QueryAvailable(ctx, ListingQuery{Page: 3, PageSize: 1000})
	if p.PageSize != 50 || len(p.Items) != 0 {
		t.Fatalf("page size not clamped: %d", p.PageSize)
	}
}

func TestListing_QueryKeywords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mk := func(title, desc, cat string) *domain.Listing {
		l, err := f.listings.CreateListing(ctx, "p1", ListingInput{
			Title: title, Description: desc, Category: cat, ExpiryHours: 2, Location: "Colombo",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return l
	}
	curry := mk("Chicken curry", "Spicy chicken curry with rice", "Curry")
	mk("Bread rolls", "Soft rolls", "Bread")
	rice := mk("Rice", "Plain rice", "Rice")

	p, err := f.listings.QueryAvailable(ctx, ListingQuery{Q: "chicken curry"})
	if err != nil {
		t.Fatalf("QueryAvailable: %v", err)
	}
	if p.Total != 1 || p.Items[0].ID != curry.ID {
		t.Fatalf("keyword match: %+v", p.Items)
	}

	p, _ = f.listings.QueryAvailable(ctx, ListingQuery{Q: "rice"})
	if p.Total != 2 || p.Items[0].ID != rice.ID {
		t.Fatalf("best match first: %+v", p.Items)
	}
}

func TestListing_MarkCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, "p1", "Colombo")

	if _, err := f.listings.MarkCompleted(ctx, l.ID, "p1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("available -> completed must fail, got %v", err)
	}
	if _, err := f.requests.SubmitRequest(ctx, l.ID, "r1", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.listings.MarkCompleted(ctx, l.ID, "p2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("non-owner: got %v", err)
	}
	if _, err := f.listings.MarkCompleted(ctx, "missing", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: got %v", err)
	}

	got, err := f.listings.MarkCompleted(ctx, l.ID, "p1")
	if err != nil || got.Status != domain.ListingCompleted {
		t.Fatalf("MarkCompleted: %v %v", got, err)
	}
	if _, err := f.listings.MarkCompleted(ctx, l.ID, "p1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed is terminal, got %v", err)
	}
	if f.pub.count(domain.EntityListing, "completed") != 1 {
		t.Fatalf("completion event not published")
	}
}

func TestListing_CreateWithImage(t *testing.T) {
	f := newFixture(t)
	imgs := &fakeImages{}
	f.listings.Images = imgs
	ctx := context.Background()

	l, err := f.listings.CreateListingWithImage(ctx, "p1", validInput(), &ImageUpload{
		Filename: "../my photo.PNG", ContentType: "image/png", Body: bytes.NewReader([]byte("png")),
	})
	if err != nil {
		t.Fatalf("CreateListingWithImage: %v", err)
	}
	if l.ImageRef == nil || !strings.HasPrefix(*l.ImageRef, "/uploads/") || strings.Contains(*l.ImageRef, "..") {
		t.Fatalf("unexpected ref %v", l.ImageRef)
	}
	if len(imgs.saved) != 1 {
		t.Fatalf("expected one stored image, got %d", len(imgs.saved))
	}

	if _, err := f.listings.CreateListingWithImage(ctx, "p1", validInput(), &ImageUpload{
		Filename: "evil.exe", Body: strings.NewReader("x"),
	}); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("bad extension: got %v", err)
	}
	if len(imgs.saved) != 1 {
		t.Fatalf("rejected upload must not be stored")
	}
}

func TestListing_CreateWithImage_RollsBackImage(t *testing.T) {
	db := newSvcDB(t)
	imgs := &fakeImages{}
	svc := &ListingService{DB: db, Listings: failingListings{}, Events: repo.Store{}, Images: imgs}

	_, err := svc.CreateListingWithImage(context.Background(), "p1", validInput(), &ImageUpload{
		Filename: "a.jpg", Body: strings.NewReader("jpg"),
	})
	if err == nil {
		t.Fatalf("expected persistence error")
	}
	if len(imgs.deleted) != 1 {
		t.Fatalf("stored image not cleaned up: %v", imgs.deleted)
	}

	var n int64
	db.Model(&domain.Listing{}).Count(&n)
	if n != 0 {
		t.Fatalf("listing must not exist, got %d", n)
	}
}

func TestListing_CreateWithImage_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.listings.Images = &fakeImages{failErr: errors.New("bucket gone")}
	_, err := f.listings.CreateListingWithImage(context.Background(), "p1", validInput(), &ImageUpload{
		Filename: "a.webp", Body: strings.NewReader("x"),
	})
	if err == nil {
		t.Fatalf("expected store error")
	}
	var n int64
	f.db.Model(&domain.Listing{}).Count(&n)
	if n != 0 {
		t.Fatalf("no listing may be created when the image fails, got %d", n)
	}
}

func TestListing_ReadHelpers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, "p1", "Colombo")
	f.listing(t, "p1", "colombo")
	f.listing(t, "p2", "Jaffna")

	if _, err := f.listings.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
	if _, err := f.listings.GetOwned(ctx, l.ID, "p2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetOwned non-owner: %v", err)
	}
	if got, err := f.listings.GetOwned(ctx, l.ID, "p1"); err != nil || got.ID != l.ID {
		t.Fatalf("GetOwned: %v %v", got, err)
	}
	mine, _ := f.listings.ListByProvider(ctx, "p1")
	if len(mine) != 2 {
		t.Fatalf("ListByProvider: %d", len(mine))
	}
	locs, _ := f.listings.AvailableLocations(ctx)
	if len(locs) != 2 || !strings.EqualFold(locs[0], "colombo") || locs[1] != "Jaffna" {
		t.Fatalf("AvailableLocations: %v", locs)
	}
	if cats := f.listings.Categories(); len(cats) != 12 || cats[0] != "Rice" {
		t.Fatalf("Categories: %v", cats)
	}

	n, ts, err := f.listings.ProviderStats(ctx, "p1")
	if err != nil || n != 2 || ts == nil {
		t.Fatalf("ProviderStats: %d %v %v", n, ts, err)
	}
	n, _, _ = f.listings.AvailableStats(ctx, ListingQuery{Location: "JAFFNA"})
	if n != 1 {
		t.Fatalf("AvailableStats: %d", n)
	}
}
