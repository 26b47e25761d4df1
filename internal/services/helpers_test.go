package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	// One connection serialises writers the way a real DB's row locks would.
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type recordingPublisher struct {
	mu  sync.Mutex
	evs []domain.StatusEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...domain.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evs = append(p.evs, evs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(entity, to string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.evs {
		if e.Entity == entity && e.ToStatus == to {
			n++
		}
	}
	return n
}

type fixture struct {
	db       *gorm.DB
	pub      *recordingPublisher
	identity *IdentityService
	listings *ListingService
	requests *RequestService
	delivery *DeliveryService
	dash     *DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newSvcDB(t)
	st := repo.Store{}
	pub := &recordingPublisher{}
	return &fixture{
		db:       db,
		pub:      pub,
		identity: NewIdentityService(db, st, NewGormSessionStore(db), bcrypt.MinCost, time.Hour),
		listings: &ListingService{DB: db, Listings: st, Events: st, Publisher: pub, MaxPageSize: 50},
		requests: &RequestService{DB: db, Listings: st, Requests: st, Events: st, Publisher: pub},
		delivery: &DeliveryService{DB: db, Requests: st, Assignments: st, Events: st, Publisher: pub},
		dash:     &DashboardService{DB: db, Listings: st, Requests: st, Assignments: st},
	}
}

func (f *fixture) listing(t *testing.T, providerID, location string) *domain.Listing {
	t.Helper()
	l, err := f.listings.CreateListing(context.Background(), providerID, ListingInput{
		Title:       "Rice packs",
		Description: "Cooked rice, sealed",
		Category:    "rice",
		ExpiryHours: 5,
		Location:    location,
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return l
}

func (f *fixture) request(t *testing.T, location string) *domain.FoodRequest {
	t.Helper()
	l := f.listing(t, uuid.NewString(), location)
	r, err := f.requests.SubmitRequest(context.Background(), l.ID, uuid.NewString(), "please")
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	return r
}

func (f *fixture) assignment(t *testing.T, courier string) *domain.DeliveryAssignment {
	t.Helper()
	r := f.request(t, "Colombo")
	a, err := f.delivery.Assign(context.Background(), r.ID, courier)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	return a
}

func fixedOTPs(codes ...string) OTPGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}
