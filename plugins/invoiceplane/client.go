package invoiceplane

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

// DefaultHTTPTimeout bounds client calls made without a custom http.Client.
const DefaultHTTPTimeout = 30 * time.Second

// apiPrefix is where InvoicePlane exposes its API relative to the install
// root.
const apiPrefix = "/index.php/api/v1/"

// APIError is a non-2xx response from the InvoicePlane API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("invoiceplane api error (%d): %s", e.StatusCode, e.Message)
}

// SystemInfo describes the InvoicePlane installation.
type SystemInfo struct {
	Version string `json:"version,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Client talks to the InvoicePlane API. Authentication is an API key sent as
// the "key" parameter; writes are form-encoded rather than JSON.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a client for the InvoicePlane install at rawURL.
func NewClient(rawURL, apiKey string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invoiceplane: invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, apiKey: apiKey, httpClient: httpClient}, nil
}

// SystemInfo fetches installation details, doubling as a connection test.
func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.get(ctx, "system", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateInvoice creates an invoice from form fields and returns the raw
// response. InvoicePlane reports the new record under "invoice_id" or "id"
// depending on version.
func (c *Client) CreateInvoice(ctx context.Context, fields map[string]string) (map[string]any, error) {
	return c.post(ctx, "invoices", fields)
}

// CreateQuote creates a quote from form fields.
func (c *Client) CreateQuote(ctx context.Context, fields map[string]string) (map[string]any, error) {
	return c.post(ctx, "quotes", fields)
}

// CreateClient creates a client record from form fields.
func (c *Client) CreateClient(ctx context.Context, fields map[string]string) (map[string]any, error) {
	return c.post(ctx, "clients", fields)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	u, err := c.baseURL.Parse(apiPrefix + endpoint)
	if err != nil {
		return fmt.Errorf("invoiceplane: build url: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("invoiceplane: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoiceplane: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return c.apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invoiceplane: decode response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, fields map[string]string) (map[string]any, error) {
	u, err := c.baseURL.Parse(apiPrefix + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invoiceplane: build url: %w", err)
	}

	form := url.Values{"key": {c.apiKey}}
	for k, v := range fields {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("invoiceplane: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoiceplane: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, c.apiError(resp)
	}

	// Some InvoicePlane versions answer with plain text.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("invoiceplane: read response: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"response": string(bytes.TrimSpace(data))}, nil
	}
	return out, nil
}

func (c *Client) apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(bytes.TrimSpace(data)),
	}
}
