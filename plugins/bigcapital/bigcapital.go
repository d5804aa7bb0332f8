// Package bigcapital integrates with the BigCapital accounting platform.
// Extracted document data is mapped into invoices, expenses, and contacts and
// pushed through the BigCapital REST API.
package bigcapital

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/docbridge/docbridge"
	"github.com/docbridge/docbridge/logging"
	"github.com/docbridge/docbridge/plugins/docstore"
)

// PluginName identifies this plugin.
const PluginName = "bigcapital"

// Plugin returns the BigCapital integration plugin.
func Plugin() *BigCapitalPlugin {
	return &BigCapitalPlugin{
		baseURL:           DefaultBaseURL,
		defaultCustomerID: 1,
	}
}

// BigCapitalPlugin pushes extracted document data into BigCapital.
type BigCapitalPlugin struct {
	baseURL           string
	apiKey            string
	defaultCustomerID int

	client *Client
	store  docstore.Store
	org    *Organization
}

// From docbridge.Plugin.
func (p *BigCapitalPlugin) Name() string { return PluginName }

// From docbridge.Plugin.
func (p *BigCapitalPlugin) Version() string { return "1.0.0" }

// From docbridge.DependentPlugin. Sync attempts are recorded against tracked
// documents.
func (p *BigCapitalPlugin) Deps() []string {
	return []string{docstore.PluginName}
}

// From docbridge.ConfigurablePlugin.
func (p *BigCapitalPlugin) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"apiKey": {"type": "string"},
			"baseUrl": {"type": "string"},
			"defaultCustomerId": {"type": "integer"}
		},
		"required": ["apiKey"]
	}`
}

// From docbridge.ConfigurablePlugin.
func (p *BigCapitalPlugin) Configure(config map[string]any) error {
	if s, ok := config["apiKey"].(string); ok {
		p.apiKey = s
	}
	if s, ok := config["baseUrl"].(string); ok && s != "" {
		p.baseURL = s
	}
	if n, ok := config["defaultCustomerId"].(float64); ok && n > 0 {
		p.defaultCustomerID = int(n)
	}
	return nil
}

// From docbridge.Plugin.
func (p *BigCapitalPlugin) Init(ctx context.Context, app *docbridge.AppContext) error {
	client, err := NewClient(p.baseURL, p.apiKey, nil)
	if err != nil {
		return err
	}
	org, err := client.Organization(ctx)
	if err != nil {
		return fmt.Errorf("bigcapital: connection test failed: %w", err)
	}
	p.client = client
	p.org = org
	p.store = docstore.FromRegistry(app.Registry)
	logging.Infow(ctx, "bigcapital: connected", "organization", org.Name)
	return nil
}

// From docbridge.Plugin.
func (p *BigCapitalPlugin) Cleanup(ctx context.Context) error { return nil }

// From docbridge.IntegrationPlugin.
func (p *BigCapitalPlugin) TestConnection(ctx context.Context) error {
	if p.client == nil {
		return docbridge.ErrNotInitialized
	}
	_, err := p.client.Organization(ctx)
	return err
}

// From docbridge.IntegrationPlugin. Supported kinds are "invoice", "expense"
// and "contact". The payload data carries the document title, text and
// optional documentId for history tracking.
func (p *BigCapitalPlugin) SyncData(ctx context.Context, payload docbridge.SyncPayload) (*docbridge.SyncResult, error) {
	if p.client == nil {
		return nil, docbridge.ErrNotInitialized
	}

	result, err := p.sync(ctx, payload)
	p.recordSync(ctx, payload, result, err)
	return result, err
}

func (p *BigCapitalPlugin) sync(ctx context.Context, payload docbridge.SyncPayload) (*docbridge.SyncResult, error) {
	title, _ := payload.Data["title"].(string)
	text, _ := payload.Data["text"].(string)
	reference, _ := payload.Data["reference"].(string)

	switch payload.Kind {
	case "invoice":
		customerID := p.defaultCustomerID
		if n, ok := payload.Data["customerId"].(float64); ok && n > 0 {
			customerID = int(n)
		}
		inv := DocumentToInvoice(title, reference, text, customerID)
		id, err := p.client.CreateInvoice(ctx, inv)
		if err != nil {
			return nil, err
		}
		return &docbridge.SyncResult{
			RemoteID: strconv.Itoa(id),
			Count:    1,
			Message:  "invoice created",
		}, nil

	case "expense":
		exp := DocumentToExpense(title, reference, text)
		id, err := p.client.CreateExpense(ctx, exp)
		if err != nil {
			return nil, err
		}
		return &docbridge.SyncResult{
			RemoteID: strconv.Itoa(id),
			Count:    1,
			Message:  "expense created",
		}, nil

	case "contact":
		contact := VendorFromDocument(title, text)
		if contact == nil {
			return nil, fmt.Errorf("bigcapital: no contact details found in document")
		}
		id, err := p.client.CreateContact(ctx, contact)
		if err != nil {
			return nil, err
		}
		return &docbridge.SyncResult{
			RemoteID: strconv.Itoa(id),
			Count:    1,
			Message:  "contact created",
		}, nil

	default:
		return nil, fmt.Errorf("bigcapital: unsupported sync kind: %s", payload.Kind)
	}
}

// recordSync persists the outcome against the tracked document, when the
// payload names one.
func (p *BigCapitalPlugin) recordSync(ctx context.Context, payload docbridge.SyncPayload, result *docbridge.SyncResult, serr error) {
	if p.store == nil {
		return
	}
	docID, _ := payload.Data["documentId"].(string)
	if docID == "" {
		return
	}
	rec := &docstore.SyncRecord{
		ID:         uuid.NewString(),
		DocumentID: docID,
		Target:     PluginName,
		Kind:       payload.Kind,
		Success:    serr == nil,
		CreatedAt:  time.Now(),
	}
	if result != nil {
		rec.RemoteID = result.RemoteID
	}
	if serr != nil {
		rec.Error = serr.Error()
	}
	if err := p.store.AddSyncRecord(ctx, rec); err != nil {
		logging.Warnw(ctx, "bigcapital: failed to record sync history",
			"error", err, "document_id", docID)
	}
}

// From docbridge.APIPlugin.
func (p *BigCapitalPlugin) APIRoutes() []docbridge.Route {
	return []docbridge.Route{
		{Method: http.MethodGet, Path: "/organization", Handler: p.handleOrganization},
		{Method: http.MethodGet, Path: "/invoices", Handler: p.handleInvoices},
		{Method: http.MethodGet, Path: "/expenses", Handler: p.handleExpenses},
		{Method: http.MethodPost, Path: "/test-connection", Handler: p.handleTestConnection},
	}
}

// From docbridge.APIPlugin.
func (p *BigCapitalPlugin) APIDocs() map[string]any {
	return map[string]any{
		"GET /organization":     "Show the connected BigCapital organization",
		"GET /invoices":         "List recent invoices",
		"GET /expenses":         "List recent expenses",
		"POST /test-connection": "Verify connectivity to BigCapital",
	}
}

func (p *BigCapitalPlugin) handleOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := p.client.Organization(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, org)
}

func (p *BigCapitalPlugin) handleInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := p.client.RecentInvoices(r.Context(), 10)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, invoices)
}

func (p *BigCapitalPlugin) handleExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := p.client.RecentExpenses(r.Context(), 10)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, expenses)
}

func (p *BigCapitalPlugin) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if err := p.TestConnection(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, map[string]any{"status": "ok"})
}

// From docbridge.HealthReporter.
func (p *BigCapitalPlugin) Health() map[string]any {
	h := map[string]any{"baseUrl": p.baseURL}
	if p.org != nil {
		h["organization"] = p.org.Name
	}
	return h
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
