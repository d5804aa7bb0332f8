package docbridge

import "net/http"

// Metadata describes a document handed to a processing plugin. Keys mirror
// what the document source knows: title, correspondent, mime type, tags.
type Metadata map[string]any

// Title returns the document title, if known.
func (m Metadata) Title() string {
	if s, ok := m["title"].(string); ok {
		return s
	}
	return ""
}

// ProcessResult is what a processing plugin returns for one document. A
// processing failure is reported here or as an error, never by a lifecycle
// status change.
type ProcessResult struct {
	Plugin    string         `json:"plugin"`
	Text      string         `json:"text,omitempty"`
	PageCount int            `json:"pageCount,omitempty"`
	Extracted *DocumentInfo  `json:"extracted,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// DocumentInfo is structured information pulled out of document text, used by
// integration plugins to build accounting payloads.
type DocumentInfo struct {
	// Kind is "invoice", "expense" or "unknown".
	Kind    string   `json:"kind"`
	Amounts []string `json:"amounts,omitempty"`
	Dates   []string `json:"dates,omitempty"`
	Emails  []string `json:"emails,omitempty"`
	Phones  []string `json:"phones,omitempty"`
}

// SyncPayload is a request to an integration plugin to exchange data with its
// external service.
type SyncPayload struct {
	// Kind selects the sync operation: "invoice", "expense", "contact",
	// "documents", etc. Plugins reject kinds they don't support.
	Kind string         `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
}

// SyncResult reports the outcome of a sync operation.
type SyncResult struct {
	// RemoteID is the identifier assigned by the external service, when the
	// sync created or updated a single record.
	RemoteID string `json:"remoteId,omitempty"`
	Count    int    `json:"count,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Route is one handler contributed by a Web or API plugin. The host mounts
// web routes under /plugins/<name> and API routes under /api/plugins/<name>.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// MenuItem is a navigation entry contributed by a Web plugin.
type MenuItem struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Icon string `json:"icon,omitempty"`
}
