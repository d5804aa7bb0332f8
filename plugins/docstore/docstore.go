// Package docstore contains an extensible interface for persisting documents
// and their processing and sync history. Other plugins depend on it to record
// what happened to each document as it moves through the pipeline.
//
// Example:
//
//	m.Register(func() docbridge.Plugin {
//		return docstore.Plugin(sqlite.New("file:docbridge.db"))
//	})
//
//	func (p *MyPlugin) Init(ctx context.Context, app *docbridge.AppContext) error {
//		p.store = docstore.FromRegistry(app.Registry)
//	}
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/docbridge/docbridge"
)

// PluginName can be used to query the docstore plugin.
const PluginName = "docstore"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("docstore: not found")

// DocStatus tracks a document through the pipeline.
type DocStatus string

const (
	DocPending   DocStatus = "pending"
	DocProcessed DocStatus = "processed"
	DocSynced    DocStatus = "synced"
	DocError     DocStatus = "error"
)

// Document is one tracked document. Source and SourceID identify where it
// came from (e.g. "paperless", "42"); Path points at the local copy.
type Document struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	SourceID      string    `json:"sourceId,omitempty"`
	Title         string    `json:"title"`
	Correspondent string    `json:"correspondent,omitempty"`
	MimeType      string    `json:"mimeType,omitempty"`
	Path          string    `json:"path,omitempty"`
	Status        DocStatus `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ProcessingRecord is one processing plugin's pass over a document.
type ProcessingRecord struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"documentId"`
	Plugin     string        `json:"plugin"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// SyncRecord is one attempt to push a document to an accounting target.
type SyncRecord struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Target     string    `json:"target"`
	Kind       string    `json:"kind"`
	RemoteID   string    `json:"remoteId,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ListOptions narrows document listings.
type ListOptions struct {
	Source string
	Status DocStatus
	Limit  int
}

// Store provides persistence for documents and their history. Implementations
// must be safe for concurrent use from request handlers and workers.
type Store interface {
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	// FindBySource returns the document previously imported from a source
	// system, or ErrNotFound. Used to dedupe polling imports.
	FindBySource(ctx context.Context, source, sourceID string) (*Document, error)
	ListDocuments(ctx context.Context, opts ListOptions) ([]Document, error)

	AddProcessingRecord(ctx context.Context, rec *ProcessingRecord) error
	ProcessingHistory(ctx context.Context, documentID string) ([]ProcessingRecord, error)

	AddSyncRecord(ctx context.Context, rec *SyncRecord) error
	SyncHistory(ctx context.Context, documentID string) ([]SyncRecord, error)

	Close() error
}

// Plugin wraps a store implementation for registration.
func Plugin(impl Store) *DocStorePlugin {
	return &DocStorePlugin{Store: impl}
}

// DocStorePlugin exposes a Store through the plugin registry.
type DocStorePlugin struct {
	Store
}

// From docbridge.Plugin.
func (p *DocStorePlugin) Name() string { return PluginName }

// From docbridge.Plugin.
func (p *DocStorePlugin) Version() string { return "1.0.0" }

// From docbridge.Plugin.
func (p *DocStorePlugin) Init(ctx context.Context, app *docbridge.AppContext) error {
	return nil
}

// From docbridge.Plugin.
func (p *DocStorePlugin) Cleanup(ctx context.Context) error {
	return p.Store.Close()
}

// FromRegistry returns the store registered under PluginName, or nil if the
// docstore plugin is not initialized.
func FromRegistry(r *docbridge.Registry) Store {
	if r == nil {
		return nil
	}
	if p, ok := r.Get(PluginName).(*DocStorePlugin); ok {
		return p.Store
	}
	return nil
}
