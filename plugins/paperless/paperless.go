// Package paperless integrates with a Paperless-NGX instance. It polls for
// newly added documents on a schedule, tracks them in the docstore, and hands
// them to the work queue. It also consumes that queue, downloading each
// document and running it through the registered processing plugins.
package paperless

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/docbridge/docbridge"
	"github.com/docbridge/docbridge/logging"
	"github.com/docbridge/docbridge/plugins/docstore"
	"github.com/docbridge/docbridge/plugins/workqueue"
)

// PluginName identifies this plugin.
const PluginName = "paperless"

// ProcessQueue is the work queue new documents are enqueued on.
const ProcessQueue = "documents.process"

// Plugin returns the Paperless-NGX integration plugin.
func Plugin() *PaperlessPlugin {
	return &PaperlessPlugin{
		pollSchedule: "@every 5m",
		pageSize:     25,
	}
}

// PaperlessPlugin imports documents from Paperless-NGX.
type PaperlessPlugin struct {
	baseURL      string
	apiKey       string
	pollSchedule string
	pageSize     int

	client    *Client
	store     docstore.Store
	queue     workqueue.Queue
	registry  *docbridge.Registry
	uploadDir string
	cron      *cron.Cron

	mu       sync.Mutex
	lastPoll time.Time
}

// From docbridge.Plugin.
func (p *PaperlessPlugin) Name() string { return PluginName }

// From docbridge.Plugin.
func (p *PaperlessPlugin) Version() string { return "1.0.0" }

// From docbridge.DependentPlugin.
func (p *PaperlessPlugin) Deps() []string {
	return []string{docstore.PluginName, workqueue.PluginName}
}

// From docbridge.ConfigurablePlugin.
func (p *PaperlessPlugin) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"baseUrl": {"type": "string"},
			"apiKey": {"type": "string"},
			"pollSchedule": {"type": "string"},
			"pageSize": {"type": "integer"}
		},
		"required": ["baseUrl", "apiKey"]
	}`
}

// From docbridge.ConfigurablePlugin.
func (p *PaperlessPlugin) Configure(config map[string]any) error {
	if s, ok := config["baseUrl"].(string); ok {
		p.baseURL = s
	}
	if s, ok := config["apiKey"].(string); ok {
		p.apiKey = s
	}
	if s, ok := config["pollSchedule"].(string); ok && s != "" {
		p.pollSchedule = s
	}
	if n, ok := config["pageSize"].(float64); ok && n > 0 {
		p.pageSize = int(n)
	}
	return nil
}

// From docbridge.Plugin. Connects to the Paperless-NGX instance and starts
// the polling schedule. An unreachable instance fails init so the failure is
// visible and retryable.
func (p *PaperlessPlugin) Init(ctx context.Context, app *docbridge.AppContext) error {
	client, err := NewClient(p.baseURL, p.apiKey, nil)
	if err != nil {
		return err
	}
	if err := client.TestConnection(ctx); err != nil {
		return fmt.Errorf("paperless: connection test failed: %w", err)
	}
	p.client = client
	p.store = docstore.FromRegistry(app.Registry)
	p.queue = workqueue.FromRegistry(app.Registry)
	p.registry = app.Registry
	p.uploadDir = app.UploadDir
	if p.uploadDir != "" {
		if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
			return fmt.Errorf("paperless: create upload dir: %w", err)
		}
	}
	p.queue.Subscribe(ProcessQueue, p.processTask)

	pollCtx := logging.With(context.Background(), logging.FromContext(ctx))
	p.cron = cron.New()
	if _, err := p.cron.AddFunc(p.pollSchedule, func() {
		if _, err := p.Poll(pollCtx); err != nil {
			logging.Errorw(pollCtx, "paperless: poll failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("paperless: invalid poll schedule %q: %w", p.pollSchedule, err)
	}
	p.cron.Start()
	return nil
}

// From docbridge.Plugin.
func (p *PaperlessPlugin) Cleanup(ctx context.Context) error {
	if p.cron != nil {
		stopped := p.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			return fmt.Errorf("paperless: timeout waiting for poll to finish")
		}
	}
	return nil
}

// From docbridge.IntegrationPlugin.
func (p *PaperlessPlugin) TestConnection(ctx context.Context) error {
	if p.client == nil {
		return docbridge.ErrNotInitialized
	}
	return p.client.TestConnection(ctx)
}

// From docbridge.IntegrationPlugin. The "documents" kind pulls a batch of
// recently added documents into the docstore, same as a scheduled poll.
func (p *PaperlessPlugin) SyncData(ctx context.Context, payload docbridge.SyncPayload) (*docbridge.SyncResult, error) {
	if p.client == nil {
		return nil, docbridge.ErrNotInitialized
	}
	switch payload.Kind {
	case "documents":
		imported, err := p.Poll(ctx)
		if err != nil {
			return nil, err
		}
		return &docbridge.SyncResult{
			Count:   imported,
			Message: fmt.Sprintf("imported %d documents", imported),
		}, nil
	default:
		return nil, fmt.Errorf("paperless: unsupported sync kind: %s", payload.Kind)
	}
}

// Poll fetches recently added documents and imports the ones not yet tracked.
// Each imported document is saved as pending and enqueued for processing.
// Returns the number of newly imported documents.
func (p *PaperlessPlugin) Poll(ctx context.Context) (int, error) {
	ctx = logging.EnsureLogger(ctx)
	p.mu.Lock()
	since := p.lastPoll
	p.mu.Unlock()

	page, err := p.client.ListDocuments(ctx, ListDocumentsOptions{
		PageSize:   p.pageSize,
		AddedAfter: since,
	})
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, doc := range page.Results {
		n, err := p.importDocument(ctx, &doc)
		if err != nil {
			logging.Warnw(ctx, "paperless: import failed",
				"error", err, "source_id", doc.ID, "title", doc.Title)
			continue
		}
		imported += n
	}

	p.mu.Lock()
	p.lastPoll = time.Now()
	p.mu.Unlock()

	if imported > 0 {
		logging.Infow(ctx, "paperless: imported documents", "count", imported)
	}
	return imported, nil
}

// importDocument saves an untracked document and enqueues it. Returns 1 when
// the document was new, 0 when it was already tracked.
func (p *PaperlessPlugin) importDocument(ctx context.Context, src *Document) (int, error) {
	sourceID := strconv.Itoa(src.ID)
	if _, err := p.store.FindBySource(ctx, PluginName, sourceID); err == nil {
		return 0, nil
	} else if err != docstore.ErrNotFound {
		return 0, err
	}

	doc := &docstore.Document{
		ID:       uuid.NewString(),
		Source:   PluginName,
		SourceID: sourceID,
		Title:    src.Title,
		MimeType: "application/pdf",
		Status:   docstore.DocPending,
	}
	if src.Correspondent != nil {
		if name, err := p.correspondentName(ctx, *src.Correspondent); err == nil {
			doc.Correspondent = name
		}
	}
	if err := p.store.SaveDocument(ctx, doc); err != nil {
		return 0, err
	}

	err := p.queue.Enqueue(ctx, ProcessQueue, map[string]any{
		"documentId": doc.ID,
		"source":     PluginName,
		"sourceId":   sourceID,
		"title":      src.Title,
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// processTask consumes one enqueued document: download the original into the
// upload dir, run every processing plugin that supports its format, and mark
// the document processed. A processing failure marks the document errored but
// does not fail the task; plugins record their own pass in the docstore.
func (p *PaperlessPlugin) processTask(ctx context.Context, task *workqueue.Task) error {
	ctx = logging.EnsureLogger(ctx)
	id, _ := task.Data["documentId"].(string)
	doc, err := p.store.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("paperless: task %s: %w", task.ID, err)
	}
	sourceID, err := strconv.Atoi(doc.SourceID)
	if err != nil {
		return fmt.Errorf("paperless: document %s has non-numeric source id %q", doc.ID, doc.SourceID)
	}

	ext := extensionFor(doc.MimeType)
	path := filepath.Join(p.uploadDir, doc.ID+"."+ext)
	if err := p.download(ctx, sourceID, path); err != nil {
		return fmt.Errorf("paperless: download document %s: %w", doc.ID, err)
	}

	meta := docbridge.Metadata{
		"documentId":    doc.ID,
		"title":         doc.Title,
		"correspondent": doc.Correspondent,
		"mimeType":      doc.MimeType,
		"source":        doc.Source,
	}

	status := docstore.DocProcessed
	for _, plug := range p.registry.ByRole(docbridge.RoleProcessing) {
		proc := plug.(docbridge.ProcessingPlugin)
		if !slices.Contains(proc.SupportedFormats(), ext) {
			continue
		}
		if _, err := proc.ProcessDocument(ctx, path, meta); err != nil {
			logging.Warnw(ctx, "paperless: processing failed",
				"plugin", plug.Name(), "document", doc.ID, "error", err)
			status = docstore.DocError
		}
	}

	doc.Path = path
	doc.Status = status
	return p.store.SaveDocument(ctx, doc)
}

func (p *PaperlessPlugin) download(ctx context.Context, sourceID int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.client.DownloadDocument(ctx, sourceID, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/tiff":
		return "tiff"
	default:
		return "pdf"
	}
}

func (p *PaperlessPlugin) correspondentName(ctx context.Context, id int) (string, error) {
	correspondents, err := p.client.Correspondents(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range correspondents {
		if c.ID == id {
			return c.Name, nil
		}
	}
	return "", fmt.Errorf("paperless: unknown correspondent %d", id)
}

// From docbridge.APIPlugin.
func (p *PaperlessPlugin) APIRoutes() []docbridge.Route {
	return []docbridge.Route{
		{Method: http.MethodGet, Path: "/documents", Handler: p.handleListDocuments},
		{Method: http.MethodPost, Path: "/poll", Handler: p.handlePoll},
		{Method: http.MethodPost, Path: "/test-connection", Handler: p.handleTestConnection},
	}
}

// From docbridge.APIPlugin.
func (p *PaperlessPlugin) APIDocs() map[string]any {
	return map[string]any{
		"GET /documents":        "List documents from the Paperless-NGX instance",
		"POST /poll":            "Trigger an immediate poll for new documents",
		"POST /test-connection": "Verify connectivity to the Paperless-NGX instance",
	}
}

func (p *PaperlessPlugin) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	opts := ListDocumentsOptions{PageSize: p.pageSize}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		opts.Page = page
	}
	opts.Search = r.URL.Query().Get("search")

	page, err := p.client.ListDocuments(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, page)
}

func (p *PaperlessPlugin) handlePoll(w http.ResponseWriter, r *http.Request) {
	imported, err := p.Poll(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, map[string]any{"imported": imported})
}

func (p *PaperlessPlugin) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if err := p.TestConnection(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, map[string]any{"status": "ok"})
}

// From docbridge.HealthReporter.
func (p *PaperlessPlugin) Health() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := map[string]any{"baseUrl": p.baseURL}
	if !p.lastPoll.IsZero() {
		h["lastPoll"] = p.lastPoll.Format(time.RFC3339)
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
