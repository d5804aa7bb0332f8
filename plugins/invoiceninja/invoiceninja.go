// Package invoiceninja integrates with an Invoice Ninja v5 instance.
// Documents flow out as invoices, quotes, and client records.
package invoiceninja

import (
	"context"
	"fmt"

	"github.com/docbridge/docbridge"
	"github.com/docbridge/docbridge/logging"
)

// PluginName identifies this plugin.
const PluginName = "invoiceninja"

// Plugin returns the Invoice Ninja integration plugin.
func Plugin() *NinjaPlugin {
	return &NinjaPlugin{}
}

// NinjaPlugin pushes document data into Invoice Ninja.
type NinjaPlugin struct {
	baseURL  string
	apiToken string

	client  *Client
	company *Company
}

// From docbridge.Plugin.
func (p *NinjaPlugin) Name() string { return PluginName }

// From docbridge.Plugin.
func (p *NinjaPlugin) Version() string { return "1.0.0" }

// From docbridge.ConfigurablePlugin.
func (p *NinjaPlugin) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"baseUrl": {"type": "string"},
			"apiToken": {"type": "string"}
		},
		"required": ["baseUrl", "apiToken"]
	}`
}

// From docbridge.ConfigurablePlugin.
func (p *NinjaPlugin) Configure(config map[string]any) error {
	if s, ok := config["baseUrl"].(string); ok {
		p.baseURL = s
	}
	if s, ok := config["apiToken"].(string); ok {
		p.apiToken = s
	}
	return nil
}

// From docbridge.Plugin.
func (p *NinjaPlugin) Init(ctx context.Context, app *docbridge.AppContext) error {
	client, err := NewClient(p.baseURL, p.apiToken, nil)
	if err != nil {
		return err
	}
	company, err := client.Company(ctx)
	if err != nil {
		return fmt.Errorf("invoiceninja: connection test failed: %w", err)
	}
	p.client = client
	p.company = company
	logging.Infow(ctx, "invoiceninja: connected", "company", company.Name)
	return nil
}

// From docbridge.Plugin.
func (p *NinjaPlugin) Cleanup(ctx context.Context) error { return nil }

// From docbridge.IntegrationPlugin.
func (p *NinjaPlugin) TestConnection(ctx context.Context) error {
	if p.client == nil {
		return docbridge.ErrNotInitialized
	}
	_, err := p.client.Company(ctx)
	return err
}

// From docbridge.IntegrationPlugin. Supported kinds are "invoice", "quote"
// and "client".
func (p *NinjaPlugin) SyncData(ctx context.Context, payload docbridge.SyncPayload) (*docbridge.SyncResult, error) {
	if p.client == nil {
		return nil, docbridge.ErrNotInitialized
	}

	switch payload.Kind {
	case "invoice":
		id, err := p.client.CreateInvoice(ctx, invoiceFromPayload(payload.Data))
		if err != nil {
			return nil, err
		}
		return &docbridge.SyncResult{RemoteID: id, Count: 1, Message: "invoice created"}, nil

	case "quote":
		id, err := p.client.CreateQuote(ctx, quoteFromPayload(payload.Data))
		if err != nil {
			return nil, err
		}
		return &docbridge.SyncResult{RemoteID: id, Count: 1, Message: "quote created"}, nil

	case "client":
		id, err := p.client.CreateClient(ctx, clientFromPayload(payload.Data))
		if err != nil {
			return nil, err
		}
		return &docbridge.SyncResult{RemoteID: id, Count: 1, Message: "client created"}, nil

	default:
		return nil, fmt.Errorf("invoiceninja: unsupported sync kind: %s", payload.Kind)
	}
}

// From docbridge.HealthReporter.
func (p *NinjaPlugin) Health() map[string]any {
	h := map[string]any{"baseUrl": p.baseURL}
	if p.company != nil {
		h["company"] = p.company.Name
	}
	return h
}

func invoiceFromPayload(data map[string]any) *Invoice {
	inv := &Invoice{
		Number:      str(data, "number"),
		Date:        str(data, "date"),
		DueDate:     str(data, "dueDate"),
		ClientID:    str(data, "clientId"),
		PublicNotes: str(data, "notes"),
	}
	inv.LineItems = lineItems(data)
	return inv
}

func quoteFromPayload(data map[string]any) *Quote {
	q := &Quote{
		Number:     str(data, "number"),
		Date:       str(data, "date"),
		ValidUntil: str(data, "validUntil"),
		ClientID:   str(data, "clientId"),
	}
	q.LineItems = lineItems(data)
	return q
}

func clientFromPayload(data map[string]any) *ClientRecord {
	return &ClientRecord{
		Name:    str(data, "name"),
		Email:   str(data, "email"),
		Phone:   str(data, "phone"),
		Website: str(data, "website"),
	}
}

func lineItems(data map[string]any) []LineItem {
	raw, ok := data["lineItems"].([]any)
	if !ok {
		return nil
	}
	var items []LineItem
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := LineItem{Notes: str(m, "notes"), Quantity: 1}
		if q, ok := m["quantity"].(float64); ok && q > 0 {
			item.Quantity = q
		}
		if c, ok := m["cost"].(float64); ok {
			item.Cost = c
		}
		items = append(items, item)
	}
	return items
}

func str(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
