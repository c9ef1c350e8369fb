package ports

import (
	"context"

	models "github.com/atlasprotect/atlas/internal"
	"github.com/atlasprotect/atlas/internal/booking"
	"github.com/atlasprotect/atlas/pkg/realtime"
)

type AssetCatalog interface {
	ListAssets(ctx context.Context, filter models.AssetFilter) ([]models.Asset, error)
}

type BookingAPI interface {
	CreateBooking(ctx context.Context, req booking.Request) (*models.Booking, error)
	ListBookings(ctx context.Context, status *models.BookingStatus) ([]models.Booking, error)
	ConfirmBooking(ctx context.Context, id string) (*models.Booking, error)
	CancelBooking(ctx context.Context, id string) (*models.Booking, error)
}

type StatusChannel interface {
	Connect(ctx context.Context)
	Disconnect()
	Subscribe(bookingID string)
	Unsubscribe(bookingID string)
	OnStatusChanged(h realtime.StatusHandler) func()
	OnFieldUpdated(h realtime.FieldHandler) func()
	State() models.ConnectionState
}

type SessionStore interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
	SaveTokens(ctx context.Context, access, refresh string) error
	SaveProfile(ctx context.Context, p models.Profile) error
	Profile(ctx context.Context) (*models.Profile, error)
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
