// Package domain defines the persistence models for users, food listings,
// receiver requests, and delivery assignments. These types are mapped with
// GORM and form the core data layer of the food-donation backend.
package domain

import (
	"time"
)

// User is a registered account. Any user may act as provider, receiver, or
// delivery person; CurrentRole only records which surface they last chose.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Username / Email: unique identities (email stored lower-cased).
//   - PasswordHash: bcrypt hash, never serialized.
//   - CurrentRole: UI routing selector, defaults to receiver.
type User struct {
	ID           string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Username     string    `json:"username"     gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	Email        string    `json:"email"        gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"            gorm:"type:varchar(255);not null"`
	CurrentRole  Role      `json:"current_role" gorm:"type:varchar(32);not null;default:'receiver'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Listing is a provider's offer of surplus food.
//
// Status only ever moves available → booked → completed. RequestedBy and
// RequestedAt are denormalized from the admitted FoodRequest when the listing
// is booked. LocationKey holds the case-folded location used for
// case-insensitive exact matching.
type Listing struct {
	ID          string        `json:"id"           gorm:"type:char(36);primaryKey"`
	Title       string        `json:"title"        gorm:"type:varchar(255);not null"`
	Description string        `json:"description"  gorm:"type:text;not null"`
	Category    Category      `json:"category"     gorm:"type:varchar(32);not null;index"`
	ExpiryHours int           `json:"expiry_hours" gorm:"not null;check:expiry_hours > 0"`
	Location    string        `json:"location"     gorm:"type:varchar(255);not null"`
	LocationKey string        `json:"-"            gorm:"type:varchar(255);not null;index:idx_listings_location_status,priority:1"`
	ProviderID  string        `json:"provider_id"  gorm:"type:char(36);not null;index:idx_listings_provider"`
	ImageRef    *string       `json:"image_ref,omitempty" gorm:"type:varchar(1024)"`
	Status      ListingStatus `json:"status"       gorm:"type:varchar(16);not null;default:'available';index:idx_listings_location_status,priority:2;index:idx_listings_status"`
	RequestedBy *string       `json:"requested_by,omitempty" gorm:"type:char(36)"`
	RequestedAt *time.Time    `json:"requested_at,omitempty"`
	Seq         int64         `json:"-"            gorm:"not null;index"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Listing.
func (Listing) TableName() string { return "listings" }

// FoodRequest is a receiver's claim against a listing.
//
// At most one request is ever admitted per listing: the listing's
// available → booked transition is the only admission gate.
type FoodRequest struct {
	ID                     string        `json:"id"          gorm:"type:char(36);primaryKey"`
	ListingID              string        `json:"listing_id"  gorm:"type:char(36);not null;index"`
	ReceiverID             string        `json:"receiver_id" gorm:"type:char(36);not null;index"`
	Message                string        `json:"message"     gorm:"type:text"`
	Status                 RequestStatus `json:"status"      gorm:"type:varchar(32);not null;default:'pending';index"`
	AssignedDeliveryPerson *string       `json:"assigned_delivery_person,omitempty" gorm:"type:char(36)"`
	Seq                    int64         `json:"-"           gorm:"not null;index"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`

	Listing Listing `json:"-" gorm:"foreignKey:ListingID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for FoodRequest.
func (FoodRequest) TableName() string { return "food_requests" }

// DeliveryAssignment is a delivery person's commitment to fulfil one request.
//
// The two OTP codes are fixed at creation and never serialized with the
// assignment itself; role-specific views expose them (see services).
// PickedUpAt and DeliveredAt are each set exactly once.
type DeliveryAssignment struct {
	ID               string           `json:"id"                 gorm:"type:char(36);primaryKey"`
	RequestID        string           `json:"request_id"         gorm:"type:char(36);not null;uniqueIndex:ux_assignment_request"`
	DeliveryPersonID string           `json:"delivery_person_id" gorm:"type:char(36);not null;index"`
	Status           AssignmentStatus `json:"status"             gorm:"type:varchar(16);not null;default:'assigned'"`
	PickupOTP        string           `json:"-"                  gorm:"column:pickup_otp;type:varchar(6);not null"`
	DeliveryOTP      string           `json:"-"                  gorm:"column:delivery_otp;type:varchar(6);not null"`
	PickedUpAt       *time.Time       `json:"picked_up_at,omitempty"`
	DeliveredAt      *time.Time       `json:"delivered_at,omitempty"`
	Seq              int64            `json:"-"                  gorm:"not null;index"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	Request FoodRequest `json:"-" gorm:"foreignKey:RequestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for DeliveryAssignment.
func (DeliveryAssignment) TableName() string { return "delivery_assignments" }

// Session is an authenticated login. ID is the SHA-256 hex digest of the
// bearer token; the token itself is never stored.
type Session struct {
	ID        string    `gorm:"type:char(64);primaryKey"`
	UserID    string    `gorm:"type:char(36);not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// Entity names used in StatusEvent.Entity.
const (
	EntityListing    = "listing"
	EntityRequest    = "request"
	EntityAssignment = "assignment"
)

// StatusEvent is one recorded lifecycle transition. Rows are written in the
// same transaction as the transition itself.
type StatusEvent struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Entity     string    `json:"entity"      gorm:"type:varchar(16);not null;index:idx_events_entity,priority:1"`
	EntityID   string    `json:"entity_id"   gorm:"type:char(36);not null;index:idx_events_entity,priority:2"`
	FromStatus string    `json:"from_status" gorm:"type:varchar(32)"`
	ToStatus   string    `json:"to_status"   gorm:"type:varchar(32);not null"`
	ActorID    string    `json:"actor_id"    gorm:"type:char(36)"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for StatusEvent.
func (StatusEvent) TableName() string { return "status_events" }
