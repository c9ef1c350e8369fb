package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	models "github.com/atlasprotect/atlas/internal"
)

// Event type names on the wire, matching the notification endpoint.
const (
	msgStatusChanged = "BookingStatusChanged"
	msgBookingUpdate = "BookingUpdate"
	msgSubscribe     = "SubscribeToBooking"
	msgUnsubscribe   = "UnsubscribeFromBooking"
)

// reconnectDelay returns the wait before the given reconnect attempt
// (1-based). The schedule is fixed: immediate, 2s, 10s, then 30s for
// every further attempt. Callers depend on these exact spacings.
func reconnectDelay(attempt int) time.Duration {
	switch {
	case attempt <= 1:
		return 0
	case attempt == 2:
		return 2 * time.Second
	case attempt == 3:
		return 10 * time.Second
	default:
		return 30 * time.Second
	}
}

type StatusHandler func(models.StatusUpdateEvent)

type FieldHandler func(models.FieldUpdateEvent)

// TokenProvider supplies the bearer token presented when dialing. It is
// consulted again on every reconnect so a rotated token is picked up.
type TokenProvider func(ctx context.Context) (string, error)

// Channel is a persistent connection to the booking notification
// endpoint. It tracks a local subscription set, replays it after every
// successful (re)connect, and fans events out to all registered
// handlers. One Channel is constructed at app start and shared; tests
// construct their own isolated instances.
type Channel struct {
	url         string
	dialer      *websocket.Dialer
	token       TokenProvider
	maxAttempts int

	// sleep is swapped out in tests to observe the backoff schedule.
	// It returns false when the wait was interrupted by Disconnect.
	sleep func(d time.Duration) bool

	// writeMu serializes socket writes; gorilla allows one writer at a time
	writeMu sync.Mutex

	mu             sync.Mutex
	conn           *websocket.Conn
	state          models.ConnectionState
	closing        bool
	stop           chan struct{}
	subs           map[string]struct{}
	statusHandlers map[uuid.UUID]StatusHandler
	fieldHandlers  map[uuid.UUID]FieldHandler
}

type Option func(*Channel)

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) {
		c.dialer = d
	}
}

func WithTokenProvider(tp TokenProvider) Option {
	return func(c *Channel) {
		c.token = tp
	}
}

// WithMaxReconnectAttempts bounds the reconnect loop; once exhausted the
// channel settles in Disconnected and the app runs in degraded mode.
func WithMaxReconnectAttempts(n int) Option {
	return func(c *Channel) {
		c.maxAttempts = n
	}
}

func WithSleep(sleep func(time.Duration) bool) Option {
	return func(c *Channel) {
		c.sleep = sleep
	}
}

func NewChannel(url string, opts ...Option) *Channel {
	c := &Channel{
		url:            url,
		dialer:         &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		maxAttempts:    8,
		state:          models.StateDisconnected,
		subs:           make(map[string]struct{}),
		statusHandlers: make(map[uuid.UUID]StatusHandler),
		fieldHandlers:  make(map[uuid.UUID]FieldHandler),
	}
	c.sleep = c.waitOrStop

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Channel) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the notification endpoint. Failures are logged, never
// returned: the application stays usable without live updates. Calling
// Connect while not Disconnected is a no-op.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.state != models.StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = models.StateConnecting
	c.closing = false
	c.stop = make(chan struct{})
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		log.Printf("realtime: connect failed, running without live updates: %v", err)
		c.mu.Lock()
		c.state = models.StateDisconnected
		c.mu.Unlock()
		return
	}

	c.attach(conn)
}

// Disconnect closes the connection and stops any reconnect attempt. The
// subscription set is kept so a later Connect resubscribes everything.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.closing = true
	if c.stop != nil {
		select {
		case <-c.stop:
		default:
			close(c.stop)
		}
	}
	conn := c.conn
	c.conn = nil
	c.state = models.StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Subscribe registers interest in a booking id. While not connected this
// only records the interest; the frame is sent on the next connect.
func (c *Channel) Subscribe(bookingID string) {
	c.mu.Lock()
	c.subs[bookingID] = struct{}{}
	conn := c.conn
	connected := c.state == models.StateConnected
	c.mu.Unlock()

	if connected {
		c.sendControl(conn, msgSubscribe, bookingID)
	}
}

// Unsubscribe drops interest in a booking id. A no-op while disconnected.
func (c *Channel) Unsubscribe(bookingID string) {
	c.mu.Lock()
	delete(c.subs, bookingID)
	conn := c.conn
	connected := c.state == models.StateConnected
	c.mu.Unlock()

	if connected {
		c.sendControl(conn, msgUnsubscribe, bookingID)
	}
}

// OnStatusChanged registers a handler for status events. The returned
// function removes exactly this registration.
func (c *Channel) OnStatusChanged(h StatusHandler) func() {
	id := uuid.New()
	c.mu.Lock()
	c.statusHandlers[id] = h
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.statusHandlers, id)
		c.mu.Unlock()
	}
}

// OnFieldUpdated registers a handler for field-delta events.
func (c *Channel) OnFieldUpdated(h FieldHandler) func() {
	id := uuid.New()
	c.mu.Lock()
	c.fieldHandlers[id] = h
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.fieldHandlers, id)
		c.mu.Unlock()
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// attach installs a live socket, replays the subscription set exactly
// once per id, and starts the read loop. A Disconnect that arrived while
// the dial was in flight wins: the late socket is closed, not installed.
func (c *Channel) attach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = models.StateConnected
	ids := make([]string, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.sendControl(conn, msgSubscribe, id)
	}

	go c.readLoop(conn)
}

type clientFrame struct {
	Type      string `json:"type"`
	BookingID string `json:"bookingId"`
}

type serverFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (c *Channel) sendControl(conn *websocket.Conn, msgType, bookingID string) {
	if conn == nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(clientFrame{Type: msgType, BookingID: bookingID}); err != nil {
		log.Printf("realtime: sending %s for %s: %v", msgType, bookingID, err)
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			c.mu.Unlock()
			if closing {
				return
			}
			log.Printf("realtime: connection lost: %v", err)
			c.reconnect()
			return
		}

		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("realtime: dropping malformed frame: %v", err)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Channel) dispatch(frame serverFrame) {
	switch frame.Type {
	case msgStatusChanged:
		var ev models.StatusUpdateEvent
		if err := json.Unmarshal(frame.Payload, &ev); err != nil {
			log.Printf("realtime: dropping malformed status event: %v", err)
			return
		}
		c.mu.Lock()
		handlers := make([]StatusHandler, 0, len(c.statusHandlers))
		for _, h := range c.statusHandlers {
			handlers = append(handlers, h)
		}
		c.mu.Unlock()
		for _, h := range handlers {
			h(ev)
		}
	case msgBookingUpdate:
		var ev models.FieldUpdateEvent
		if err := json.Unmarshal(frame.Payload, &ev); err != nil {
			log.Printf("realtime: dropping malformed field event: %v", err)
			return
		}
		c.mu.Lock()
		handlers := make([]FieldHandler, 0, len(c.fieldHandlers))
		for _, h := range c.fieldHandlers {
			handlers = append(handlers, h)
		}
		c.mu.Unlock()
		for _, h := range handlers {
			h(ev)
		}
	default:
		// unknown server frames are ignored for forward compatibility
	}
}

// reconnect runs the bounded backoff loop after a transport loss.
// Attempt 1 is immediate, then 2s, 10s and 30s for every later attempt.
func (c *Channel) reconnect() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = models.StateReconnecting
	c.mu.Unlock()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if !c.sleep(reconnectDelay(attempt)) {
			return
		}

		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		conn, err := c.dial(context.Background())
		if err != nil {
			log.Printf("realtime: reconnect attempt %d failed: %v", attempt, err)
			continue
		}

		c.attach(conn)
		return
	}

	log.Printf("realtime: giving up after %d reconnect attempts", c.maxAttempts)
	c.mu.Lock()
	c.state = models.StateDisconnected
	c.mu.Unlock()
}

func (c *Channel) waitOrStop(d time.Duration) bool {
	if d == 0 {
		return true
	}
	c.mu.Lock()
	stop := c.stop
	c.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}
