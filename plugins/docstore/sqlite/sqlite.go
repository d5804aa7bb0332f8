// Package sqlite provides a SQLite implementation of docstore.Store.
//
// Examples:
//
//	store := sqlite.New("file:docbridge.db")
//	store := sqlite.New(":memory:")
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/docbridge/docbridge/plugins/docstore"

	_ "github.com/mattn/go-sqlite3"
)

// New returns a store backed by SQLite. The schema is created optimistically
// on open; errors there are considered non-recoverable and panic.
func New(conn string) docstore.Store {
	db, err := sql.Open("sqlite3", conn)
	if err != nil {
		panic("failed to open sqlite connection: " + err.Error())
	}
	s := &store{db: db}
	if err := s.ensureSchema(); err != nil {
		panic("failed to create docstore schema: " + err.Error())
	}
	return s
}

type store struct {
	db *sql.DB
}

func (s *store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			source_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			correspondent TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_source
			ON documents (source, source_id)`,
		`CREATE TABLE IF NOT EXISTS processing_records (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			plugin TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ns INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_records (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			target TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			remote_id TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *store) SaveDocument(ctx context.Context, doc *docstore.Document) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, source, source_id, title, correspondent, mime_type, path, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			correspondent = excluded.correspondent,
			mime_type = excluded.mime_type,
			path = excluded.path,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Source, doc.SourceID, doc.Title, doc.Correspondent,
		doc.MimeType, doc.Path, doc.Status, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("docstore: save document: %w", err)
	}
	return nil
}

func (s *store) GetDocument(ctx context.Context, id string) (*docstore.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, source_id, title, correspondent, mime_type, path, status, created_at, updated_at
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

func (s *store) FindBySource(ctx context.Context, source, sourceID string) (*docstore.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, source_id, title, correspondent, mime_type, path, status, created_at, updated_at
		FROM documents WHERE source = ? AND source_id = ?`, source, sourceID)
	return scanDocument(row)
}

func scanDocument(row *sql.Row) (*docstore.Document, error) {
	var doc docstore.Document
	err := row.Scan(&doc.ID, &doc.Source, &doc.SourceID, &doc.Title, &doc.Correspondent,
		&doc.MimeType, &doc.Path, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: scan document: %w", err)
	}
	return &doc, nil
}

func (s *store) ListDocuments(ctx context.Context, opts docstore.ListOptions) ([]docstore.Document, error) {
	query := `
		SELECT id, source, source_id, title, correspondent, mime_type, path, status, created_at, updated_at
		FROM documents WHERE 1=1`
	var args []any
	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, opts.Source)
	}
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, opts.Status)
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: list documents: %w", err)
	}
	defer rows.Close()

	var out []docstore.Document
	for rows.Next() {
		var doc docstore.Document
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.SourceID, &doc.Title, &doc.Correspondent,
			&doc.MimeType, &doc.Path, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("docstore: scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *store) AddProcessingRecord(ctx context.Context, rec *docstore.ProcessingRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_records (id, document_id, plugin, success, error, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocumentID, rec.Plugin, rec.Success, rec.Error, int64(rec.Duration), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("docstore: add processing record: %w", err)
	}
	return nil
}

func (s *store) ProcessingHistory(ctx context.Context, documentID string) ([]docstore.ProcessingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, plugin, success, error, duration_ns, created_at
		FROM processing_records WHERE document_id = ? ORDER BY created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("docstore: processing history: %w", err)
	}
	defer rows.Close()

	var out []docstore.ProcessingRecord
	for rows.Next() {
		var rec docstore.ProcessingRecord
		var durNS int64
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Plugin, &rec.Success,
			&rec.Error, &durNS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("docstore: scan processing record: %w", err)
		}
		rec.Duration = time.Duration(durNS)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *store) AddSyncRecord(ctx context.Context, rec *docstore.SyncRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_records (id, document_id, target, kind, remote_id, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocumentID, rec.Target, rec.Kind, rec.RemoteID, rec.Success, rec.Error, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("docstore: add sync record: %w", err)
	}
	return nil
}

func (s *store) SyncHistory(ctx context.Context, documentID string) ([]docstore.SyncRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, target, kind, remote_id, success, error, created_at
		FROM sync_records WHERE document_id = ? ORDER BY created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("docstore: sync history: %w", err)
	}
	defer rows.Close()

	var out []docstore.SyncRecord
	for rows.Next() {
		var rec docstore.SyncRecord
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Target, &rec.Kind,
			&rec.RemoteID, &rec.Success, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("docstore: scan sync record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *store) Close() error {
	return s.db.Close()
}
