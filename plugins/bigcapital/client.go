package bigcapital

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
)

// DefaultBaseURL is the hosted BigCapital API.
const DefaultBaseURL = "https://api.bigcapital.ly"

// DefaultHTTPTimeout bounds client calls made without a custom http.Client.
const DefaultHTTPTimeout = 30 * time.Second

// APIError is a non-2xx response from the BigCapital API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bigcapital api error (%d): %s", e.StatusCode, e.Message)
}

// Organization is the authenticated tenant's organization record.
type Organization struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	BaseCurr string `json:"base_currency,omitempty"`
}

// InvoiceEntry is one line item on an invoice.
type InvoiceEntry struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
}

// Invoice is an invoice creation payload or record.
type Invoice struct {
	ID            int            `json:"id,omitempty"`
	CustomerID    int            `json:"customer_id"`
	InvoiceDate   string         `json:"invoice_date"`
	DueDate       string         `json:"due_date"`
	InvoiceNumber string         `json:"invoice_no,omitempty"`
	Reference     string         `json:"reference_no,omitempty"`
	Note          string         `json:"note,omitempty"`
	Entries       []InvoiceEntry `json:"entries"`
}

// Expense is an expense creation payload or record.
type Expense struct {
	ID          int     `json:"id,omitempty"`
	PaymentDate string  `json:"payment_date"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
	Reference   string  `json:"reference_no,omitempty"`
}

// Contact is a customer or vendor record.
type Contact struct {
	ID          int    `json:"id,omitempty"`
	DisplayName string `json:"display_name"`
	ContactType string `json:"contact_type"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

type createResponse struct {
	ID int `json:"id"`
}

// Client talks to the BigCapital REST API using bearer token authentication.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a BigCapital client. An empty rawURL uses the hosted API.
func NewClient(rawURL, apiKey string, httpClient *http.Client) (*Client, error) {
	if rawURL == "" {
		rawURL = DefaultBaseURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("bigcapital: invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, apiKey: apiKey, httpClient: httpClient}, nil
}

// Organization fetches the authenticated organization, doubling as a
// connection test.
func (c *Client) Organization(ctx context.Context) (*Organization, error) {
	var wrapper struct {
		Organization Organization `json:"organization"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/organization", nil, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Organization, nil
}

// CreateInvoice creates a sale invoice and returns its ID.
func (c *Client) CreateInvoice(ctx context.Context, inv *Invoice) (int, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/api/invoices", inv, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// CreateExpense creates an expense and returns its ID.
func (c *Client) CreateExpense(ctx context.Context, exp *Expense) (int, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/api/expenses", exp, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// CreateContact creates a customer or vendor and returns its ID.
func (c *Client) CreateContact(ctx context.Context, contact *Contact) (int, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/api/contacts", contact, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// RecentInvoices lists the most recently created invoices.
func (c *Client) RecentInvoices(ctx context.Context, limit int) ([]Invoice, error) {
	var wrapper struct {
		Invoices []Invoice `json:"invoices"`
	}
	endpoint := "/api/invoices?page_size=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Invoices, nil
}

// RecentExpenses lists the most recently created expenses.
func (c *Client) RecentExpenses(ctx context.Context, limit int) ([]Expense, error) {
	var wrapper struct {
		Expenses []Expense `json:"expenses"`
	}
	endpoint := "/api/expenses?page_size=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Expenses, nil
}

// Customers lists all customer contacts.
func (c *Client) Customers(ctx context.Context) ([]Contact, error) {
	var wrapper struct {
		Customers []Contact `json:"customers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/customers", nil, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Customers, nil
}

// Vendors lists all vendor contacts.
func (c *Client) Vendors(ctx context.Context) ([]Contact, error) {
	var wrapper struct {
		Vendors []Contact `json:"vendors"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/vendors", nil, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Vendors, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("bigcapital: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u, err := c.baseURL.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("bigcapital: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("bigcapital: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bigcapital: request failed: %w", err)
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
		return fmt.Errorf("bigcapital: decode response: %w", err)
	}
	return nil
}
