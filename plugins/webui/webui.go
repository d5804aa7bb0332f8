// Package webui contributes the HTML dashboard: plugin status, tracked
// documents, and their processing history.
package webui

import (
	"context"
	"html/template"
	"net/http"

	"github.com/docbridge/docbridge"
	"github.com/docbridge/docbridge/logging"
	"github.com/docbridge/docbridge/plugins/docstore"
)

// PluginName identifies this plugin.
const PluginName = "webui"

// Plugin returns the web dashboard plugin.
func Plugin() *WebUIPlugin {
	return &WebUIPlugin{docLimit: 50}
}

// WebUIPlugin renders status pages for operators.
type WebUIPlugin struct {
	appName  string
	docLimit int

	manager  *docbridge.Manager
	registry *docbridge.Registry
	store    docstore.Store
}

// From docbridge.Plugin.
func (p *WebUIPlugin) Name() string { return PluginName }

// From docbridge.Plugin.
func (p *WebUIPlugin) Version() string { return "1.0.0" }

// From docbridge.DependentPlugin.
func (p *WebUIPlugin) Deps() []string {
	return []string{docstore.PluginName}
}

// From docbridge.Plugin.
func (p *WebUIPlugin) Init(ctx context.Context, app *docbridge.AppContext) error {
	p.appName = docbridge.ConfigString("name")
	if p.manager == nil {
		p.manager = app.Manager
	}
	p.registry = app.Registry
	p.store = docstore.FromRegistry(app.Registry)
	return nil
}

// From docbridge.Plugin.
func (p *WebUIPlugin) Cleanup(ctx context.Context) error { return nil }

// SetManager overrides the manager used for lifecycle health. Init picks the
// host's manager up from the AppContext; this is for standalone wiring.
func (p *WebUIPlugin) SetManager(m *docbridge.Manager) { p.manager = m }

// From docbridge.WebPlugin.
func (p *WebUIPlugin) Routes() []docbridge.Route {
	return []docbridge.Route{
		{Method: http.MethodGet, Path: "/", Handler: p.handleDashboard},
		{Method: http.MethodGet, Path: "/documents", Handler: p.handleDocuments},
	}
}

// From docbridge.WebPlugin.
func (p *WebUIPlugin) MenuItems() []docbridge.MenuItem {
	return []docbridge.MenuItem{
		{Name: "Dashboard", URL: "/plugins/webui/", Icon: "home"},
		{Name: "Documents", URL: "/plugins/webui/documents", Icon: "file"},
	}
}

type dashboardData struct {
	AppName string
	Summary docbridge.HealthSummary
}

func (p *WebUIPlugin) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := dashboardData{AppName: p.appName}
	if p.manager != nil {
		data.Summary = p.manager.HealthSummary()
	}
	p.render(w, r, dashboardTmpl, data)
}

type documentsData struct {
	AppName   string
	Documents []docstore.Document
}

func (p *WebUIPlugin) handleDocuments(w http.ResponseWriter, r *http.Request) {
	data := documentsData{AppName: p.appName}
	if p.store != nil {
		docs, err := p.store.ListDocuments(r.Context(), docstore.ListOptions{Limit: p.docLimit})
		if err != nil {
			http.Error(w, "failed to list documents", http.StatusInternalServerError)
			return
		}
		data.Documents = docs
	}
	p.render(w, r, documentsTmpl, data)
}

func (p *WebUIPlugin) render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		logging.Errorw(r.Context(), "webui: template render failed",
			"error", err, "template", tmpl.Name())
	}
}

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.AppName}} - Dashboard</title></head>
<body>
<h1>{{.AppName}}</h1>
<p>{{.Summary.Initialized}} initialized, {{.Summary.Failed}} failed, {{.Summary.Invalid}} invalid, {{.Summary.Disabled}} disabled</p>
<table border="1" cellpadding="4">
<tr><th>Plugin</th><th>Version</th><th>Status</th><th>Roles</th><th>Error</th></tr>
{{range .Summary.Details}}
<tr>
  <td>{{.Name}}</td>
  <td>{{.Version}}</td>
  <td>{{.Status}}</td>
  <td>{{range .Roles}}{{.}} {{end}}</td>
  <td>{{.Error}}</td>
</tr>
{{end}}
</table>
</body>
</html>`))

var documentsTmpl = template.Must(template.New("documents").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.AppName}} - Documents</title></head>
<body>
<h1>Documents</h1>
<table border="1" cellpadding="4">
<tr><th>Title</th><th>Source</th><th>Correspondent</th><th>Status</th><th>Added</th></tr>
{{range .Documents}}
<tr>
  <td>{{.Title}}</td>
  <td>{{.Source}}</td>
  <td>{{.Correspondent}}</td>
  <td>{{.Status}}</td>
  <td>{{.CreatedAt.Format "2006-01-02 15:04"}}</td>
</tr>
{{end}}
</table>
</body>
</html>`))
