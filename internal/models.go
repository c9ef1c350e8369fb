package models

import (
	"errors"
	"time"
)

type AssetCategory string

const (
	CategoryAviation   AssetCategory = "AVIATION"
	CategoryChauffeur  AssetCategory = "CHAUFFEUR"
	CategoryArmoured   AssetCategory = "ARMOURED"
	CategoryProtection AssetCategory = "PROTECTION"
)

var (
	ErrUnknownCategory   = errors.New("unknown asset category")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrUnknownStatus     = errors.New("unknown booking status")
)

func (c AssetCategory) Valid() bool {
	switch c {
	case CategoryAviation, CategoryChauffeur, CategoryArmoured, CategoryProtection:
		return true
	}
	return false
}

// Money is an amount in minor units (cents) with an ISO 4217 currency code.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CapabilitySpecs carries category-specific asset capabilities. Fields are
// optional; the backend omits those that do not apply.
type CapabilitySpecs struct {
	PassengerCapacity int    `json:"passenger_capacity,omitempty"`
	BallisticRating   string `json:"ballistic_rating,omitempty"`
	Range             string `json:"range,omitempty"`
}

// Asset is a bookable resource: aircraft, vehicle or personnel unit.
// Assets are read-only on the client; the backend owns their lifecycle.
type Asset struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Category     AssetCategory    `json:"category"`
	HourlyRate   Money            `json:"hourly_rate"`
	IsAvailable  bool             `json:"is_available"`
	Capabilities *CapabilitySpecs `json:"capabilities,omitempty"`
}

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusActive    BookingStatus = "ACTIVE"
	StatusCompleted BookingStatus = "COMPLETED"
	StatusCancelled BookingStatus = "CANCELLED"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave this status.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether moving from s to next is a legal
// forward-progress edge. Cancelled is reachable from any non-terminal
// status; everything else must follow
// Pending -> Confirmed -> Active -> Completed in single steps.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusConfirmed
	case StatusConfirmed:
		return next == StatusActive
	case StatusActive:
		return next == StatusCompleted
	}
	return false
}

type StatusBucket string

const (
	BucketUpcoming  StatusBucket = "UPCOMING"
	BucketPast      StatusBucket = "PAST"
	BucketCancelled StatusBucket = "CANCELLED"
)

// BucketFor maps a status to its lifecycle bucket. The mapping is total:
// every valid status lands in exactly one bucket.
func BucketFor(s BookingStatus) StatusBucket {
	switch s {
	case StatusCompleted:
		return BucketPast
	case StatusCancelled:
		return BucketCancelled
	default:
		return BucketUpcoming
	}
}

// Booking is a reservation of an Asset for a time window and route.
// The id and booking number are assigned server-side on creation.
type Booking struct {
	ID                string        `json:"id"`
	BookingNumber     string        `json:"booking_number"`
	AssetID           string        `json:"asset_id"`
	AssetName         string        `json:"asset_name"`
	PickupLocation    string        `json:"pickup_location"`
	DropoffLocation   string        `json:"dropoff_location"`
	ServiceTime       time.Time     `json:"service_time"`
	IncludeProtection bool          `json:"include_protection"`
	Notes             string        `json:"notes,omitempty"`
	EstimatedCost     *Money        `json:"estimated_cost,omitempty"`
	Status            BookingStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
}

// StatusUpdateEvent is a server push carrying a booking's new status.
type StatusUpdateEvent struct {
	BookingID string        `json:"bookingId"`
	Status    BookingStatus `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// FieldUpdateEvent is a server push carrying a single-field delta. The
// client treats it as a refresh trigger only; the payload is not assumed
// complete enough to patch local state.
type FieldUpdateEvent struct {
	BookingID string    `json:"bookingId"`
	Field     string    `json:"field"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
	Timestamp time.Time `json:"timestamp"`
}

type ConnectionState string

const (
	StateDisconnected ConnectionState = "DISCONNECTED"
	StateConnecting   ConnectionState = "CONNECTING"
	StateConnected    ConnectionState = "CONNECTED"
	StateReconnecting ConnectionState = "RECONNECTING"
)

// AssetFilter narrows an asset listing. The zero value lists everything.
type AssetFilter struct {
	Category      AssetCategory
	OnlyAvailable bool
}

// Profile is the last-known user profile cached in local storage.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
