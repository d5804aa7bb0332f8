// Package memstore provides an in-memory implementation of docstore.Store,
// suitable for tests and single-run imports.
package memstore

import (
	"context"
	"sync"

	"github.com/docbridge/docbridge/plugins/docstore"
)

// New returns an empty in-memory store.
func New() docstore.Store {
	return &store{
		docs: map[string]docstore.Document{},
	}
}

type store struct {
	mu    sync.RWMutex
	docs  map[string]docstore.Document
	order []string
	procs []docstore.ProcessingRecord
	syncs []docstore.SyncRecord
}

func (s *store) SaveDocument(ctx context.Context, doc *docstore.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; !ok {
		s.order = append(s.order, doc.ID)
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *store) GetDocument(ctx context.Context, id string) (*docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.docs[id]; ok {
		return &doc, nil
	}
	return nil, docstore.ErrNotFound
}

func (s *store) FindBySource(ctx context.Context, source, sourceID string) (*docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		doc := s.docs[id]
		if doc.Source == source && doc.SourceID == sourceID {
			return &doc, nil
		}
	}
	return nil, docstore.ErrNotFound
}

func (s *store) ListDocuments(ctx context.Context, opts docstore.ListOptions) ([]docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []docstore.Document
	for _, id := range s.order {
		doc := s.docs[id]
		if opts.Source != "" && doc.Source != opts.Source {
			continue
		}
		if opts.Status != "" && doc.Status != opts.Status {
			continue
		}
		out = append(out, doc)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *store) AddProcessingRecord(ctx context.Context, rec *docstore.ProcessingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs = append(s.procs, *rec)
	return nil
}

func (s *store) ProcessingHistory(ctx context.Context, documentID string) ([]docstore.ProcessingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []docstore.ProcessingRecord
	for _, rec := range s.procs {
		if rec.DocumentID == documentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *store) AddSyncRecord(ctx context.Context, rec *docstore.SyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncs = append(s.syncs, *rec)
	return nil
}

func (s *store) SyncHistory(ctx context.Context, documentID string) ([]docstore.SyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []docstore.SyncRecord
	for _, rec := range s.syncs {
		if rec.DocumentID == documentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *store) Close() error {
	return nil
}
