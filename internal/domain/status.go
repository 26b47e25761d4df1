package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned by the transition methods below when the
// current status does not permit the requested step.
var ErrInvalidTransition = errors.New("invalid status transition")

// ListingStatus is the availability of a Listing.
type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingBooked    ListingStatus = "booked"
	ListingCompleted ListingStatus = "completed"
)

// Valid reports whether s is one of the declared listing statuses.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingAvailable, ListingBooked, ListingCompleted:
		return true
	}
	return false
}

// Book is the available → booked step taken when a request is admitted.
func (s ListingStatus) Book() (ListingStatus, error) {
	if s != ListingAvailable {
		return s, transitionErr("listing", string(s), string(ListingBooked))
	}
	return ListingBooked, nil
}

// Complete is the booked → completed step taken by the owning provider.
func (s ListingStatus) Complete() (ListingStatus, error) {
	if s != ListingBooked {
		return s, transitionErr("listing", string(s), string(ListingCompleted))
	}
	return ListingCompleted, nil
}

// RequestStatus is the lifecycle of a FoodRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted" // reserved; no operation enters it
	// RequestAssigned is stored as "assigned_for_delivery".
	RequestAssigned  RequestStatus = "assigned_for_delivery"
	RequestDelivered RequestStatus = "delivered"
)

// Valid reports whether s is one of the declared request statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestAssigned, RequestDelivered:
		return true
	}
	return false
}

// AssignForDelivery is the pending → assigned_for_delivery step.
func (s RequestStatus) AssignForDelivery() (RequestStatus, error) {
	if s != RequestPending {
		return s, transitionErr("request", string(s), string(RequestAssigned))
	}
	return RequestAssigned, nil
}

// Deliver is the assigned_for_delivery → delivered step, cascaded from a
// verified delivery OTP.
func (s RequestStatus) Deliver() (RequestStatus, error) {
	if s != RequestAssigned {
		return s, transitionErr("request", string(s), string(RequestDelivered))
	}
	return RequestDelivered, nil
}

// AssignmentStatus is the lifecycle of a DeliveryAssignment.
type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentPickedUp  AssignmentStatus = "picked_up"
	AssignmentDelivered AssignmentStatus = "delivered"
)

// Valid reports whether s is one of the declared assignment statuses.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentAssigned, AssignmentPickedUp, AssignmentDelivered:
		return true
	}
	return false
}

// PickUp is the assigned → picked_up step.
func (s AssignmentStatus) PickUp() (AssignmentStatus, error) {
	if s != AssignmentAssigned {
		return s, transitionErr("assignment", string(s), string(AssignmentPickedUp))
	}
	return AssignmentPickedUp, nil
}

// Deliver is the picked_up → delivered step. Delivery before pickup is
// rejected here rather than left to callers.
func (s AssignmentStatus) Deliver() (AssignmentStatus, error) {
	if s != AssignmentPickedUp {
		return s, transitionErr("assignment", string(s), string(AssignmentDelivered))
	}
	return AssignmentDelivered, nil
}

func transitionErr(entity, from, to string) error {
	return fmt.Errorf("%s %s -> %s: %w", entity, from, to, ErrInvalidTransition)
}

// Role is the user's current UI role selector.
type Role string

const (
	RoleProvider       Role = "provider"
	RoleReceiver       Role = "receiver"
	RoleDeliveryPerson Role = "delivery_person"
)

// ParseRole returns the Role named by s, or false when s is not a role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleProvider, RoleReceiver, RoleDeliveryPerson:
		return r, true
	}
	return "", false
}
