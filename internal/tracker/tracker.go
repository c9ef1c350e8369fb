package tracker

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	models "github.com/atlasprotect/atlas/internal"
	"github.com/atlasprotect/atlas/internal/booking"
	"github.com/atlasprotect/atlas/internal/ports"
)

type appliedEvent struct {
	status models.BookingStatus
	ts     time.Time
}

// Tracker maintains the user's bookings partitioned into lifecycle
// buckets and keeps them current from push events. Events are used as
// refresh triggers only: on any event for a tracked booking the tracker
// re-fetches the authoritative list instead of patching from the partial
// event payload.
type Tracker struct {
	api     ports.BookingAPI
	channel ports.StatusChannel

	mu       sync.Mutex
	bookings map[string]models.Booking
	applied  map[string]appliedEvent
	unsubs   []func()
	started  bool

	// fetch generations: a slow earlier fetch must not overwrite the
	// result of a faster later one (last completed fetch wins).
	gen         uint64
	lastApplied uint64
}

func New(api ports.BookingAPI, channel ports.StatusChannel) *Tracker {
	return &Tracker{
		api:      api,
		channel:  channel,
		bookings: make(map[string]models.Booking),
		applied:  make(map[string]appliedEvent),
	}
}

// Start loads the initial booking list and attaches the tracker to the
// status channel. Safe to call once; subsequent calls are no-ops.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.mu.Unlock()

	unsubStatus := t.channel.OnStatusChanged(func(ev models.StatusUpdateEvent) {
		t.HandleStatusEvent(ctx, ev)
	})
	unsubField := t.channel.OnFieldUpdated(func(ev models.FieldUpdateEvent) {
		t.HandleFieldEvent(ctx, ev)
	})

	t.mu.Lock()
	t.unsubs = append(t.unsubs, unsubStatus, unsubField)
	t.mu.Unlock()

	if err := t.Reload(ctx); err != nil {
		return fmt.Errorf("initial booking load: %w", err)
	}
	return nil
}

// Close detaches the tracker from the channel and drops every
// subscription it holds. Must be called when the tracking surface goes
// away; dangling subscriptions otherwise accumulate.
func (t *Tracker) Close() {
	t.mu.Lock()
	unsubs := t.unsubs
	t.unsubs = nil
	ids := make([]string, 0, len(t.bookings))
	for id := range t.bookings {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	for _, id := range ids {
		t.channel.Unsubscribe(id)
	}
}

// Submit creates a booking from a built request, caches the result and
// subscribes to its status updates. The returned booking is in status
// Pending with a server-assigned id.
func (t *Tracker) Submit(ctx context.Context, req booking.Request) (*models.Booking, error) {
	created, err := t.api.CreateBooking(ctx, req)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.bookings[created.ID] = *created
	t.mu.Unlock()

	t.channel.Subscribe(created.ID)
	return created, nil
}

// Confirm asks the backend to confirm a booking after checking the
// transition is legal locally.
func (t *Tracker) Confirm(ctx context.Context, id string) (*models.Booking, error) {
	if err := t.checkTransition(id, models.StatusConfirmed); err != nil {
		return nil, err
	}
	updated, err := t.api.ConfirmBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	t.store(*updated)
	return updated, nil
}

// Cancel cancels a booking. Cancelling a Completed booking is rejected
// locally without an API call.
func (t *Tracker) Cancel(ctx context.Context, id string) (*models.Booking, error) {
	if err := t.checkTransition(id, models.StatusCancelled); err != nil {
		return nil, err
	}
	updated, err := t.api.CancelBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	t.store(*updated)
	return updated, nil
}

// Track subscribes to live updates for a booking id.
func (t *Tracker) Track(bookingID string) {
	t.channel.Subscribe(bookingID)
}

// Untrack drops the live subscription for a booking id.
func (t *Tracker) Untrack(bookingID string) {
	t.channel.Unsubscribe(bookingID)
}

// Bucket returns the bookings in one lifecycle bucket, ordered stably by
// creation time then id. No ordering beyond stability is promised.
func (t *Tracker) Bucket(b models.StatusBucket) []models.Booking {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []models.Booking
	for _, bk := range t.bookings {
		if models.BucketFor(bk.Status) == b {
			out = append(out, bk)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Buckets returns all three buckets at once.
func (t *Tracker) Buckets() map[models.StatusBucket][]models.Booking {
	return map[models.StatusBucket][]models.Booking{
		models.BucketUpcoming:  t.Bucket(models.BucketUpcoming),
		models.BucketPast:      t.Bucket(models.BucketPast),
		models.BucketCancelled: t.Bucket(models.BucketCancelled),
	}
}

// Get returns the cached booking, if any.
func (t *Tracker) Get(bookingID string) (models.Booking, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.bookings[bookingID]
	return b, ok
}

// Reload fetches the authoritative booking list and replaces the local
// cache, unless a later-started fetch already finished first.
func (t *Tracker) Reload(ctx context.Context) error {
	t.mu.Lock()
	t.gen++
	g := t.gen
	t.mu.Unlock()

	list, err := t.api.ListBookings(ctx, nil)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if g <= t.lastApplied {
		// a newer fetch completed while this one was in flight
		return nil
	}
	t.lastApplied = g
	t.bookings = make(map[string]models.Booking, len(list))
	for _, b := range list {
		t.bookings[b.ID] = b
	}
	return nil
}

// HandleStatusEvent applies one inbound status event. Application is
// idempotent: a duplicate (same booking, same status, same or earlier
// timestamp) is dropped, as are events for unknown or already-terminal
// bookings and events describing an illegal transition.
func (t *Tracker) HandleStatusEvent(ctx context.Context, ev models.StatusUpdateEvent) {
	t.mu.Lock()
	current, known := t.bookings[ev.BookingID]
	if !known || current.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	if last, ok := t.applied[ev.BookingID]; ok {
		if ev.Status == last.status && !ev.Timestamp.After(last.ts) {
			t.mu.Unlock()
			return
		}
	}
	if ev.Status == current.Status {
		// the list fetch already reflects this change
		t.applied[ev.BookingID] = appliedEvent{status: ev.Status, ts: ev.Timestamp}
		t.mu.Unlock()
		return
	}
	if !current.Status.CanTransition(ev.Status) {
		t.mu.Unlock()
		log.Printf("tracker: ignoring illegal transition %s -> %s for booking %s",
			current.Status, ev.Status, ev.BookingID)
		return
	}
	t.applied[ev.BookingID] = appliedEvent{status: ev.Status, ts: ev.Timestamp}
	t.mu.Unlock()

	if err := t.Reload(ctx); err != nil {
		log.Printf("tracker: reload after status event for %s: %v", ev.BookingID, err)
	}
}

// HandleFieldEvent treats a field delta purely as a refresh trigger; the
// delta itself is discarded since the payload is not guaranteed complete.
func (t *Tracker) HandleFieldEvent(ctx context.Context, ev models.FieldUpdateEvent) {
	t.mu.Lock()
	current, known := t.bookings[ev.BookingID]
	terminal := known && current.Status.Terminal()
	t.mu.Unlock()
	if !known || terminal {
		return
	}

	if err := t.Reload(ctx); err != nil {
		log.Printf("tracker: reload after field event for %s: %v", ev.BookingID, err)
	}
}

func (t *Tracker) checkTransition(id string, next models.BookingStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, known := t.bookings[id]
	if !known {
		return nil
	}
	if !current.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, current.Status, next)
	}
	return nil
}

func (t *Tracker) store(b models.Booking) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bookings[b.ID] = b
}
