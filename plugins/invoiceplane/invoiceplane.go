// Package invoiceplane integrates with a self-hosted InvoicePlane install.
package invoiceplane

import (
	"context"
	"fmt"

	"github.com/docbridge/docbridge"
	"github.com/docbridge/docbridge/logging"
)

// PluginName identifies this plugin.
const PluginName = "invoiceplane"

// Plugin returns the InvoicePlane integration plugin.
func Plugin() *PlanePlugin {
	return &PlanePlugin{}
}

// PlanePlugin pushes document data into InvoicePlane.
type PlanePlugin struct {
	baseURL string
	apiKey  string

	client *Client
	info   *SystemInfo
}

// From docbridge.Plugin.
func (p *PlanePlugin) Name() string { return PluginName }

// From docbridge.Plugin.
func (p *PlanePlugin) Version() string { return "1.0.0" }

// From docbridge.ConfigurablePlugin.
func (p *PlanePlugin) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"baseUrl": {"type": "string"},
			"apiKey": {"type": "string"}
		},
		"required": ["baseUrl", "apiKey"]
	}`
}

// From docbridge.ConfigurablePlugin.
func (p *PlanePlugin) Configure(config map[string]any) error {
	if s, ok := config["baseUrl"].(string); ok {
		p.baseURL = s
	}
	if s, ok := config["apiKey"].(string); ok {
		p.apiKey = s
	}
	return nil
}

// From docbridge.Plugin.
func (p *PlanePlugin) Init(ctx context.Context, app *docbridge.AppContext) error {
	client, err := NewClient(p.baseURL, p.apiKey, nil)
	if err != nil {
		return err
	}
	info, err := client.SystemInfo(ctx)
	if err != nil {
		return fmt.Errorf("invoiceplane: connection test failed: %w", err)
	}
	p.client = client
	p.info = info
	logging.Infow(ctx, "invoiceplane: connected", "version", info.Version)
	return nil
}

// From docbridge.Plugin.
func (p *PlanePlugin) Cleanup(ctx context.Context) error { return nil }

// From docbridge.IntegrationPlugin.
func (p *PlanePlugin) TestConnection(ctx context.Context) error {
	if p.client == nil {
		return docbridge.ErrNotInitialized
	}
	_, err := p.client.SystemInfo(ctx)
	return err
}

// From docbridge.IntegrationPlugin. Supported kinds are "invoice", "quote"
// and "client". Payload fields are passed through with InvoicePlane's column
// naming.
func (p *PlanePlugin) SyncData(ctx context.Context, payload docbridge.SyncPayload) (*docbridge.SyncResult, error) {
	if p.client == nil {
		return nil, docbridge.ErrNotInitialized
	}

	var (
		resp map[string]any
		err  error
	)
	switch payload.Kind {
	case "invoice":
		resp, err = p.client.CreateInvoice(ctx, invoiceFields(payload.Data))
	case "quote":
		resp, err = p.client.CreateQuote(ctx, quoteFields(payload.Data))
	case "client":
		resp, err = p.client.CreateClient(ctx, clientFields(payload.Data))
	default:
		return nil, fmt.Errorf("invoiceplane: unsupported sync kind: %s", payload.Kind)
	}
	if err != nil {
		return nil, err
	}

	return &docbridge.SyncResult{
		RemoteID: remoteID(resp),
		Count:    1,
		Message:  payload.Kind + " created",
	}, nil
}

// From docbridge.HealthReporter.
func (p *PlanePlugin) Health() map[string]any {
	h := map[string]any{"baseUrl": p.baseURL}
	if p.info != nil {
		h["version"] = p.info.Version
	}
	return h
}

func invoiceFields(data map[string]any) map[string]string {
	return map[string]string{
		"invoice_number":       str(data, "number"),
		"invoice_date_created": str(data, "date"),
		"invoice_date_due":     str(data, "dueDate"),
		"client_id":            str(data, "clientId"),
	}
}

func quoteFields(data map[string]any) map[string]string {
	return map[string]string{
		"quote_number":       str(data, "number"),
		"quote_date_created": str(data, "date"),
		"quote_date_expires": str(data, "expiresDate"),
		"client_id":          str(data, "clientId"),
	}
}

func clientFields(data map[string]any) map[string]string {
	return map[string]string{
		"client_name":  str(data, "name"),
		"client_email": str(data, "email"),
		"client_phone": str(data, "phone"),
		"client_web":   str(data, "website"),
	}
}

func remoteID(resp map[string]any) string {
	for _, key := range []string{"invoice_id", "quote_id", "client_id", "id"} {
		switch v := resp[key].(type) {
		case string:
			return v
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func str(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
