package atlasapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	models "github.com/atlasprotect/atlas/internal"
	"github.com/atlasprotect/atlas/internal/booking"
)

// Client wraps the ATLAS backend HTTP API. All calls are context-aware
// and return typed *APIError failures.
type Client struct {
	httpClient HTTPClient
	baseURL    string
	creds      CredentialSource
}

type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// CredentialSource supplies the bearer token for each request and
// performs a refresh when the backend reports the session invalid.
type CredentialSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithCredentials(creds CredentialSource) Option {
	return func(c *Client) {
		c.creds = creds
	}
}

func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    "https://api.atlasprotect.com/v1",
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// ListAssets fetches the bookable assets matching the filter.
func (c *Client) ListAssets(ctx context.Context, filter models.AssetFilter) ([]models.Asset, error) {
	u := c.baseURL + "/assets"
	q := url.Values{}
	if filter.Category != "" {
		q.Set("category", string(filter.Category))
	}
	if filter.OnlyAvailable {
		q.Set("isAvailable", strconv.FormatBool(true))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var assets []models.Asset
	if err := c.do(ctx, http.MethodGet, u, nil, &assets); err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	return assets, nil
}

type createBookingPayload struct {
	AssetID           string `json:"assetId"`
	ServiceDate       string `json:"serviceDate"`
	ServiceTime       string `json:"serviceTime"`
	PickupLocation    string `json:"pickupLocation"`
	DropoffLocation   string `json:"dropoffLocation"`
	IncludeProtection bool   `json:"includeProtection"`
	Notes             string `json:"notes,omitempty"`
}

// CreateBooking submits the request and returns the created booking in
// status Pending. The call is NOT idempotent: no idempotency key is
// sent, so retrying a timed-out submission may create a duplicate.
func (c *Client) CreateBooking(ctx context.Context, req booking.Request) (*models.Booking, error) {
	payload := createBookingPayload{
		AssetID:           req.AssetID,
		ServiceDate:       req.ServiceDate(),
		ServiceTime:       req.ServiceClock(),
		PickupLocation:    req.PickupLocation,
		DropoffLocation:   req.DropoffLocation,
		IncludeProtection: req.IncludeProtection,
		Notes:             req.Notes,
	}

	var created models.Booking
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/bookings", payload, &created); err != nil {
		return nil, fmt.Errorf("creating booking: %w", err)
	}
	return &created, nil
}

// ListBookings fetches the caller's bookings, optionally filtered by
// status. The returned slice is the authoritative view; callers replace
// their local cache with it rather than merging.
func (c *Client) ListBookings(ctx context.Context, status *models.BookingStatus) ([]models.Booking, error) {
	u := c.baseURL + "/bookings"
	if status != nil {
		q := url.Values{}
		q.Set("status", string(*status))
		u += "?" + q.Encode()
	}

	var bookings []models.Booking
	if err := c.do(ctx, http.MethodGet, u, nil, &bookings); err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	return bookings, nil
}

func (c *Client) ConfirmBooking(ctx context.Context, id string) (*models.Booking, error) {
	var updated models.Booking
	u := fmt.Sprintf("%s/bookings/%s/confirm", c.baseURL, url.PathEscape(id))
	if err := c.do(ctx, http.MethodPost, u, nil, &updated); err != nil {
		return nil, fmt.Errorf("confirming booking %s: %w", id, err)
	}
	return &updated, nil
}

func (c *Client) CancelBooking(ctx context.Context, id string) (*models.Booking, error) {
	var updated models.Booking
	u := fmt.Sprintf("%s/bookings/%s/cancel", c.baseURL, url.PathEscape(id))
	if err := c.do(ctx, http.MethodPost, u, nil, &updated); err != nil {
		return nil, fmt.Errorf("cancelling booking %s: %w", id, err)
	}
	return &updated, nil
}

// do performs one API round trip: marshal, authorize, send, and decode.
// A 401 triggers exactly one silent credential refresh and retry before
// surfacing KindUnauthorized.
func (c *Client) do(ctx context.Context, method, u string, payload, out interface{}) error {
	token := ""
	if c.creds != nil {
		var err error
		token, err = c.creds.AccessToken(ctx)
		if err != nil {
			return &APIError{Kind: KindUnauthorized, Msg: err.Error()}
		}
	}

	resp, err := c.send(ctx, method, u, payload, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.creds != nil {
		drain(resp)
		refreshed, err := c.creds.Refresh(ctx)
		if err != nil {
			return &APIError{Kind: KindUnauthorized, Msg: err.Error()}
		}
		resp, err = c.send(ctx, method, u, payload, refreshed)
		if err != nil {
			return err
		}
	}
	defer drain(resp)

	if ae := apiErrorFromResponse(resp); ae != nil {
		return ae
	}

	if out == nil {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: KindUnreachable, Msg: err.Error()}
	}
	return json.Unmarshal(body, out)
}

func (c *Client) send(ctx context.Context, method, u string, payload interface{}, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		jsonBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")
	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindUnreachable, Msg: err.Error()}
	}
	return resp, nil
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func apiErrorFromResponse(resp *http.Response) *APIError {
	if resp.StatusCode < 400 {
		return nil
	}

	msg := resp.Status
	body, err := io.ReadAll(resp.Body)
	if err == nil && len(body) > 0 {
		var envelope errorEnvelope
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
			msg = envelope.Error
		}
	}

	ae := &APIError{StatusCode: resp.StatusCode, Msg: msg}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		ae.Kind = KindUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		ae.Kind = KindNotFound
	case resp.StatusCode >= 500:
		ae.Kind = KindServerError
	default:
		ae.Kind = KindValidationRejected
	}
	return ae
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
