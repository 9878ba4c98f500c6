package freightlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Freightline HTTP API client.
type Client struct {
	BaseURL     string
	TenantID    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, tenantID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		TenantID: tenantID,
		Timeout:  10 * time.Second,
	}
}

// Location is a named port or place.
type Location struct {
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// Quote represents the API quote model (partial).
type Quote struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	QuoteNumber     string    `json:"quote_number"`
	AccountID       *string   `json:"account_id,omitempty"`
	Status          string    `json:"status"`
	TotalAmount     float64   `json:"total_amount"`
	Currency        string    `json:"currency"`
	OriginPort      *Location `json:"origin_port,omitempty"`
	DestinationPort *Location `json:"destination_port,omitempty"`
	Incoterms       string    `json:"incoterms,omitempty"`
	ValidUntil      *string   `json:"valid_until,omitempty"`
}

// QuoteOption is one priced carrier offer on a quote.
type QuoteOption struct {
	ID                   string   `json:"id"`
	QuoteID              string   `json:"quote_id"`
	OptionName           string   `json:"option_name"`
	CarrierName          string   `json:"carrier_name,omitempty"`
	TotalSell            float64  `json:"total_sell"`
	TotalBuy             float64  `json:"total_buy"`
	MarginAmount         float64  `json:"margin_amount"`
	MarginPercentage     float64  `json:"margin_percentage"`
	RankScore            *float64 `json:"rank_score,omitempty"`
	IsRecommended        bool     `json:"is_recommended"`
	RecommendationReason string   `json:"recommendation_reason,omitempty"`
	Status               string   `json:"status"`
}

// Booking represents the API booking model (partial).
type Booking struct {
	ID            string  `json:"id"`
	QuoteID       *string `json:"quote_id,omitempty"`
	BookingNumber string  `json:"booking_number"`
	TenantID      string  `json:"tenant_id"`
	Status        string  `json:"status"`
	Source        string  `json:"source"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	TotalAmount   float64 `json:"total_amount"`
	Currency      string  `json:"currency"`
}

// Validation reports how a quote mapped into a booking.
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ConvertResult pairs the created booking with its validation report.
type ConvertResult struct {
	Booking    Booking    `json:"booking"`
	Validation Validation `json:"validation"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	TenantID   string `json:"tenant_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateQuote creates a draft quote.
func (c *Client) CreateQuote(ctx context.Context, origin, destination Location, currency string) (Quote, error) {
	body := map[string]any{
		"origin_port":      origin,
		"destination_port": destination,
		"currency":         currency,
	}
	var resp Quote
	err := c.do(ctx, http.MethodPost, c.tenantPath("quotes"), body, &resp)
	return resp, err
}

// GetQuote fetches a quote by id.
func (c *Client) GetQuote(ctx context.Context, id string) (Quote, error) {
	var resp Quote
	err := c.do(ctx, http.MethodGet, c.tenantPath("quotes/"+url.PathEscape(id)), nil, &resp)
	return resp, err
}

// ListQuotes returns quotes, optionally filtered by status.
func (c *Client) ListQuotes(ctx context.Context, status string) ([]Quote, error) {
	endpoint := c.tenantPath("quotes")
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Quote
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SetQuoteStatus transitions a quote.
func (c *Client) SetQuoteStatus(ctx context.Context, id, status string) (Quote, error) {
	var resp Quote
	endpoint := c.tenantPath(fmt.Sprintf("quotes/%s/status", url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// ListQuoteOptions returns a quote's priced options.
func (c *Client) ListQuoteOptions(ctx context.Context, quoteID string) ([]QuoteOption, error) {
	var resp []QuoteOption
	endpoint := c.tenantPath(fmt.Sprintf("quotes/%s/options", url.PathEscape(quoteID)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RankQuoteOptions scores a quote's options and returns them annotated.
func (c *Client) RankQuoteOptions(ctx context.Context, quoteID string) ([]QuoteOption, error) {
	var resp []QuoteOption
	endpoint := c.tenantPath(fmt.Sprintf("quotes/%s/rank", url.PathEscape(quoteID)))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// AcceptOption accepts one option and returns the accepted quote.
func (c *Client) AcceptOption(ctx context.Context, optionID string) (Quote, error) {
	var resp Quote
	endpoint := c.tenantPath(fmt.Sprintf("options/%s/accept", url.PathEscape(optionID)))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// ConvertQuote converts an accepted quote into a booking.
func (c *Client) ConvertQuote(ctx context.Context, quoteID, strategy string) (ConvertResult, error) {
	body := map[string]any{}
	if strategy != "" {
		body["strategy"] = strategy
	}
	var resp ConvertResult
	endpoint := c.tenantPath(fmt.Sprintf("quotes/%s/convert", url.PathEscape(quoteID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GetBooking fetches a booking by id.
func (c *Client) GetBooking(ctx context.Context, id string) (Booking, error) {
	var resp Booking
	err := c.do(ctx, http.MethodGet, c.tenantPath("bookings/"+url.PathEscape(id)), nil, &resp)
	return resp, err
}

// ListBookings returns bookings, optionally filtered by status.
func (c *Client) ListBookings(ctx context.Context, status string) ([]Booking, error) {
	endpoint := c.tenantPath("bookings")
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Booking
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SetBookingStatus transitions a booking.
func (c *Client) SetBookingStatus(ctx context.Context, id, status string) (Booking, error) {
	var resp Booking
	endpoint := c.tenantPath(fmt.Sprintf("bookings/%s/status", url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := c.tenantPath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) tenantPath(p string) string {
	tenant := url.PathEscape(c.TenantID)
	return fmt.Sprintf("v0/tenants/%s/%s", tenant, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
