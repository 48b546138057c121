// Package docstore keeps per-document ingestion records in SQLite so the
// corpus can be inspected and re-ingestions supersede cleanly.
package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Document is one ingested document's record.
type Document struct {
	ID          string
	Title       string
	SourcePath  string
	ContentHash string
	ChunkCount  int
	IngestedAt  time.Time
}

// Stats summarizes the ingested corpus.
type Stats struct {
	Documents       int
	Chunks          int
	AvgChunksPerDoc float64
}

// Store is a SQLite-backed document registry.
type Store struct {
	db *sql.DB
}

// Open opens or creates the document store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create docstore directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode=WAL&_pragma=synchronous=NORMAL&_pragma=busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open docstore: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping docstore: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		source_path TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		ingested_at TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create docstore schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Put records a document, replacing any previous record with the same id.
func (s *Store) Put(ctx context.Context, doc Document) error {
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, source_path, content_hash, chunk_count, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			source_path = excluded.source_path,
			content_hash = excluded.content_hash,
			chunk_count = excluded.chunk_count,
			ingested_at = excluded.ingested_at`,
		doc.ID, doc.Title, doc.SourcePath, doc.ContentHash, doc.ChunkCount,
		doc.IngestedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record document %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns the record for id, or sql.ErrNoRows if absent.
func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, source_path, content_hash, chunk_count, ingested_at
		 FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// Delete removes the record for id. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// List returns all document records ordered by id.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, source_path, content_hash, chunk_count, ingested_at
		 FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Stats computes corpus totals for the stats command.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(chunk_count), 0) FROM documents`)
	if err := row.Scan(&st.Documents, &st.Chunks); err != nil {
		return Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	if st.Documents > 0 {
		st.AvgChunksPerDoc = float64(st.Chunks) / float64(st.Documents)
	}
	return st, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var ingested string
	if err := row.Scan(&doc.ID, &doc.Title, &doc.SourcePath, &doc.ContentHash, &doc.ChunkCount, &ingested); err != nil {
		if err == sql.ErrNoRows {
			return Document{}, err
		}
		return Document{}, fmt.Errorf("failed to scan document: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, ingested)
	if err != nil {
		return Document{}, fmt.Errorf("failed to parse ingested_at: %w", err)
	}
	doc.IngestedAt = t
	return doc, nil
}
