package booking

import (
	"fmt"
	"time"

	models "github.com/atlasprotect/atlas/internal"
	"github.com/atlasprotect/atlas/internal/validator"
)

// FieldError reports a single invalid or missing builder field so the
// caller can route the user back to it.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// Request is a validated, ready-to-submit booking payload. Requests are
// produced only by Builder.Build and passed by value; callers never
// mutate one after construction.
type Request struct {
	AssetID           string    `json:"assetId" validate:"required"`
	AssetName         string    `json:"-"`
	PickupLocation    string    `json:"pickupLocation" validate:"required,location"`
	DropoffLocation   string    `json:"dropoffLocation" validate:"required,location"`
	ServiceTime       time.Time `json:"-" validate:"required"`
	IncludeProtection bool      `json:"includeProtection"`
	Notes             string    `json:"notes,omitempty"`
}

// ServiceDate returns the wire-format date component of the service time.
func (r Request) ServiceDate() string {
	return r.ServiceTime.Format("2006-01-02")
}

// ServiceClock returns the wire-format time-of-day component.
func (r Request) ServiceClock() string {
	return r.ServiceTime.Format("15:04")
}

// Builder accumulates the fields of a booking request. Zero or more
// setters may be called in any order; Build validates the whole set.
type Builder struct {
	asset      *models.Asset
	pickup     string
	dropoff    string
	when       time.Time
	protection bool
	notes      string
	now        func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// WithClock overrides the builder's notion of "now". Used by tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) SelectAsset(a models.Asset) *Builder {
	b.asset = &a
	return b
}

func (b *Builder) Pickup(location string) *Builder {
	b.pickup = location
	return b
}

func (b *Builder) Dropoff(location string) *Builder {
	b.dropoff = location
	return b
}

func (b *Builder) At(t time.Time) *Builder {
	b.when = t
	return b
}

func (b *Builder) WithProtection(include bool) *Builder {
	b.protection = include
	return b
}

func (b *Builder) Notes(text string) *Builder {
	b.notes = text
	return b
}

// Build validates the collected fields and returns an immutable Request.
// A *FieldError names the first offending field. Availability is checked
// against the asset as it looked at selection time; the backend remains
// the authority and may still reject the submission.
func (b *Builder) Build() (Request, error) {
	if b.asset == nil {
		return Request{}, &FieldError{Field: "asset", Reason: "no asset selected"}
	}
	if !b.asset.IsAvailable {
		return Request{}, &FieldError{Field: "asset", Reason: "asset is not available"}
	}
	if b.pickup == "" {
		return Request{}, &FieldError{Field: "pickupLocation", Reason: "pickup location is required"}
	}
	if b.dropoff == "" {
		return Request{}, &FieldError{Field: "dropoffLocation", Reason: "dropoff location is required"}
	}
	if b.when.IsZero() {
		return Request{}, &FieldError{Field: "serviceTime", Reason: "service time is required"}
	}
	if b.when.Before(b.now()) {
		return Request{}, &FieldError{Field: "serviceTime", Reason: "service time must not be in the past"}
	}

	protection := b.protection
	if b.asset.Category == models.CategoryProtection {
		// the asset itself is a protection detail; the add-on does not apply
		protection = false
	}

	req := Request{
		AssetID:           b.asset.ID,
		AssetName:         b.asset.Name,
		PickupLocation:    b.pickup,
		DropoffLocation:   b.dropoff,
		ServiceTime:       b.when,
		IncludeProtection: protection,
		Notes:             b.notes,
	}

	v := validator.NewCustomValidator()
	if err := v.Validate(req); err != nil {
		return Request{}, fmt.Errorf("booking request validation: %w", err)
	}
	return req, nil
}
