package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultHTTPTimeout bounds client calls made without a custom http.Client.
const DefaultHTTPTimeout = 30 * time.Second

// APIError is a non-2xx response from the Paperless-NGX API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paperless api error (%d): %s", e.StatusCode, e.Message)
}

// Document is a document record as returned by /api/documents/.
type Document struct {
	ID                  int       `json:"id"`
	Title               string    `json:"title"`
	Content             string    `json:"content,omitempty"`
	Created             time.Time `json:"created"`
	Modified            time.Time `json:"modified"`
	Added               time.Time `json:"added"`
	Correspondent       *int      `json:"correspondent"`
	DocumentType        *int      `json:"document_type"`
	Tags                []int     `json:"tags"`
	ArchiveSerialNumber *int      `json:"archive_serial_number"`
	OriginalFileName    string    `json:"original_file_name"`
	ArchivedFileName    string    `json:"archived_file_name,omitempty"`
}

// DocumentPage is one page of a paginated document listing.
type DocumentPage struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []Document `json:"results"`
}

// HasNext reports whether another page follows.
func (p *DocumentPage) HasNext() bool { return p.Next != nil }

// NamedResource is a correspondent, document type or tag.
type NamedResource struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type namedPage struct {
	Results []NamedResource `json:"results"`
}

// Client talks to the Paperless-NGX REST API using token authentication.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// NewClient returns a client for the Paperless-NGX instance at rawURL. When
// httpClient is nil a default client with a request timeout is used.
func NewClient(rawURL, token string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("paperless: invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, token: token, httpClient: httpClient}, nil
}

// TestConnection verifies the API is reachable and the token is accepted.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.ListDocuments(ctx, ListDocumentsOptions{PageSize: 1})
	return err
}

// ListDocumentsOptions narrows a document listing.
type ListDocumentsOptions struct {
	Page     int
	PageSize int
	Search   string
	// AddedAfter filters to documents added after the given time.
	AddedAfter time.Time
}

// ListDocuments fetches one page of documents.
func (c *Client) ListDocuments(ctx context.Context, opts ListDocumentsOptions) (*DocumentPage, error) {
	params := url.Values{}
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	if opts.Search != "" {
		params.Set("search", opts.Search)
	}
	if !opts.AddedAfter.IsZero() {
		params.Set("added__date__gt", opts.AddedAfter.Format("2006-01-02"))
	}
	params.Set("ordering", "-added")

	var page DocumentPage
	if err := c.get(ctx, "/api/documents/", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetDocument fetches a single document by ID.
func (c *Client) GetDocument(ctx context.Context, id int) (*Document, error) {
	var doc Document
	if err := c.get(ctx, fmt.Sprintf("/api/documents/%d/", id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DocumentContent fetches the extracted text content of a document.
func (c *Client) DocumentContent(ctx context.Context, id int) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/documents/%d/content/", id), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paperless: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", c.apiError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("paperless: read content: %w", err)
	}
	return string(data), nil
}

// DownloadDocument streams the original file of a document to w.
func (c *Client) DownloadDocument(ctx context.Context, id int, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/documents/%d/download/", id), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paperless: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return c.apiError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("paperless: download: %w", err)
	}
	return nil
}

// UploadDocument posts a file to /api/documents/post_document/ for ingestion.
func (c *Client) UploadDocument(ctx context.Context, path, title string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("paperless: open upload: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("paperless: build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("paperless: build upload: %w", err)
	}
	if title != "" {
		if err := mw.WriteField("title", title); err != nil {
			return fmt.Errorf("paperless: build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("paperless: build upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/documents/post_document/", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paperless: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return c.apiError(resp)
	}
	return nil
}

// Correspondents lists all correspondents.
func (c *Client) Correspondents(ctx context.Context) ([]NamedResource, error) {
	return c.listNamed(ctx, "/api/correspondents/")
}

// DocumentTypes lists all document types.
func (c *Client) DocumentTypes(ctx context.Context) ([]NamedResource, error) {
	return c.listNamed(ctx, "/api/document_types/")
}

// Tags lists all tags.
func (c *Client) Tags(ctx context.Context) ([]NamedResource, error) {
	return c.listNamed(ctx, "/api/tags/")
}

func (c *Client) listNamed(ctx context.Context, endpoint string) ([]NamedResource, error) {
	var page namedPage
	if err := c.get(ctx, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paperless: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return c.apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("paperless: decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	u, err := c.baseURL.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("paperless: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("paperless: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(bytes.TrimSpace(data)),
	}
}
