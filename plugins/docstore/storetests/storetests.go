// Package storetests provides a standard conformance suite run against every
// docstore.Store implementation.
package storetests

import (
	"testing"
	"time"

	"github.com/docbridge/docbridge/plugins/docstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run executes the conformance suite against a fresh store per subtest.
func Run(t *testing.T, newStore func(t *testing.T) docstore.Store) {
	t.Run("SaveAndGetDocument", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := t.Context()

		doc := &docstore.Document{
			ID:        uuid.NewString(),
			Source:    "paperless",
			SourceID:  "42",
			Title:     "Invoice March",
			Status:    docstore.DocPending,
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, s.SaveDocument(ctx, doc))

		got, err := s.GetDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.Title, got.Title)
		assert.Equal(t, docstore.DocPending, got.Status)
	})

	t.Run("GetMissingDocument", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		_, err := s.GetDocument(t.Context(), "nope")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("SaveUpdatesExisting", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := t.Context()

		doc := &docstore.Document{
			ID:        uuid.NewString(),
			Source:    "upload",
			Title:     "Receipt",
			Status:    docstore.DocPending,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, s.SaveDocument(ctx, doc))

		doc.Status = docstore.DocProcessed
		require.NoError(t, s.SaveDocument(ctx, doc))

		got, err := s.GetDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, docstore.DocProcessed, got.Status)
	})

	t.Run("FindBySource", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := t.Context()

		doc := &docstore.Document{
			ID:        uuid.NewString(),
			Source:    "paperless",
			SourceID:  "77",
			Title:     "Statement",
			Status:    docstore.DocPending,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, s.SaveDocument(ctx, doc))

		got, err := s.FindBySource(ctx, "paperless", "77")
		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)

		_, err = s.FindBySource(ctx, "paperless", "78")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("ListDocumentsFiltered", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := t.Context()

		base := time.Now().UTC().Add(-time.Hour)
		for i, source := range []string{"paperless", "paperless", "upload"} {
			require.NoError(t, s.SaveDocument(ctx, &docstore.Document{
				ID:        uuid.NewString(),
				Source:    source,
				Title:     "Doc",
				Status:    docstore.DocPending,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		got, err := s.ListDocuments(ctx, docstore.ListOptions{Source: "paperless"})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.ListDocuments(ctx, docstore.ListOptions{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("ProcessingHistory", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := t.Context()

		docID := uuid.NewString()
		require.NoError(t, s.AddProcessingRecord(ctx, &docstore.ProcessingRecord{
			ID:         uuid.NewString(),
			DocumentID: docID,
			Plugin:     "ocr",
			Success:    true,
			Duration:   120 * time.Millisecond,
			CreatedAt:  time.Now().UTC(),
		}))
		require.NoError(t, s.AddProcessingRecord(ctx, &docstore.ProcessingRecord{
			ID:         uuid.NewString(),
			DocumentID: "other",
			Plugin:     "ocr",
			Success:    false,
			Error:      "unreadable",
			CreatedAt:  time.Now().UTC(),
		}))

		got, err := s.ProcessingHistory(ctx, docID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "ocr", got[0].Plugin)
		assert.True(t, got[0].Success)
		assert.Equal(t, 120*time.Millisecond, got[0].Duration)
	})

	t.Run("SyncHistory", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := t.Context()

		docID := uuid.NewString()
		require.NoError(t, s.AddSyncRecord(ctx, &docstore.SyncRecord{
			ID:         uuid.NewString(),
			DocumentID: docID,
			Target:     "bigcapital",
			Kind:       "invoice",
			RemoteID:   "inv-1",
			Success:    true,
			CreatedAt:  time.Now().UTC(),
		}))

		got, err := s.SyncHistory(ctx, docID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "bigcapital", got[0].Target)
		assert.Equal(t, "inv-1", got[0].RemoteID)
	})
}
