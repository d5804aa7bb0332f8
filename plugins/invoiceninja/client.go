package invoiceninja

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultHTTPTimeout bounds client calls made without a custom http.Client.
const DefaultHTTPTimeout = 30 * time.Second

// APIError is a non-2xx response from the Invoice Ninja API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("invoiceninja api error (%d): %s", e.StatusCode, e.Message)
}

// Company is the authenticated company record.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// LineItem is one invoice or quote line.
type LineItem struct {
	ProductKey string  `json:"product_key,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	Quantity   float64 `json:"quantity"`
	Cost       float64 `json:"cost"`
}

// Invoice is an invoice creation payload or record.
type Invoice struct {
	ID          string     `json:"id,omitempty"`
	Number      string     `json:"number,omitempty"`
	Date        string     `json:"date,omitempty"`
	DueDate     string     `json:"due_date,omitempty"`
	ClientID    string     `json:"client_id"`
	PublicNotes string     `json:"public_notes,omitempty"`
	LineItems   []LineItem `json:"line_items"`
}

// Quote shares the invoice shape with a validity date instead of a due date.
type Quote struct {
	ID         string     `json:"id,omitempty"`
	Number     string     `json:"number,omitempty"`
	Date       string     `json:"date,omitempty"`
	ValidUntil string     `json:"valid_until,omitempty"`
	ClientID   string     `json:"client_id"`
	LineItems  []LineItem `json:"line_items"`
}

// ClientRecord is an Invoice Ninja client (customer).
type ClientRecord struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
}

// dataEnvelope matches Invoice Ninja's {"data": ...} response wrapper.
type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

// Client talks to the Invoice Ninja v5 API under /api/v1/ using the
// X-API-TOKEN header.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// NewClient returns a client for the Invoice Ninja instance at rawURL.
func NewClient(rawURL, token string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invoiceninja: invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, token: token, httpClient: httpClient}, nil
}

// Company fetches the first company on the account, doubling as a connection
// test.
func (c *Client) Company(ctx context.Context) (*Company, error) {
	var env dataEnvelope[[]Company]
	if err := c.do(ctx, http.MethodGet, "companies", nil, &env); err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("invoiceninja: account has no companies")
	}
	return &env.Data[0], nil
}

// CreateInvoice creates an invoice and returns its ID.
func (c *Client) CreateInvoice(ctx context.Context, inv *Invoice) (string, error) {
	var env dataEnvelope[Invoice]
	if err := c.do(ctx, http.MethodPost, "invoices", inv, &env); err != nil {
		return "", err
	}
	return env.Data.ID, nil
}

// CreateQuote creates a quote and returns its ID.
func (c *Client) CreateQuote(ctx context.Context, q *Quote) (string, error) {
	var env dataEnvelope[Quote]
	if err := c.do(ctx, http.MethodPost, "quotes", q, &env); err != nil {
		return "", err
	}
	return env.Data.ID, nil
}

// CreateClient creates a client record and returns its ID.
func (c *Client) CreateClient(ctx context.Context, rec *ClientRecord) (string, error) {
	var env dataEnvelope[ClientRecord]
	if err := c.do(ctx, http.MethodPost, "clients", rec, &env); err != nil {
		return "", err
	}
	return env.Data.ID, nil
}

// RecentInvoices lists recent invoices.
func (c *Client) RecentInvoices(ctx context.Context, limit int) ([]Invoice, error) {
	var env dataEnvelope[[]Invoice]
	endpoint := fmt.Sprintf("invoices?per_page=%d", limit)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("invoiceninja: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u, err := c.baseURL.Parse("/api/v1/" + endpoint)
	if err != nil {
		return fmt.Errorf("invoiceninja: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("invoiceninja: create request: %w", err)
	}
	req.Header.Set("X-API-TOKEN", c.token)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoiceninja: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invoiceninja: decode response: %w", err)
	}
	return nil
}
