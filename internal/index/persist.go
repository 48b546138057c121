package index

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
)

// schemaVersion is bumped when the on-disk layout changes.
const schemaVersion = 1

// SaveTo serializes the index to a SQLite file at path, replacing any
// previous contents. The header row records dimension and metric so a
// later load can validate compatibility before use.
func (f *Flat) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := openIndexDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS index_meta (
			schema_version INTEGER NOT NULL,
			dimension INTEGER NOT NULL,
			metric TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS entries (
			chunk_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			text TEXT NOT NULL,
			vector BLOB NOT NULL,
			metadata TEXT
		);`,
		`DELETE FROM index_meta;`,
		`DELETE FROM entries;`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to prepare index schema: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO index_meta (schema_version, dimension, metric) VALUES (?, ?, ?)`,
		schemaVersion, f.dims, string(f.metric),
	); err != nil {
		return fmt.Errorf("failed to write index header: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO entries (chunk_id, document_id, ordinal, text, vector, metadata) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range f.snapshot() {
		meta, err := encodeMetadata(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", e.ChunkID, err)
		}
		if _, err := stmt.Exec(e.ChunkID, e.DocumentID, e.Ordinal, e.Text, vectorToBlob(e.Vector), meta); err != nil {
			return fmt.Errorf("failed to persist entry %s: %w", e.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	return nil
}

// LoadFrom restores an index from a SQLite file written by SaveTo. The
// stored header must match the expected dimension and metric; an
// unreadable or inconsistent file surfaces ErrCorrupted rather than
// being silently discarded.
func LoadFrom(path string, dims int, metric config.Metric) (*Flat, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("index file not found: %w", err)
	}

	db, err := openIndexDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var version, storedDims int
	var storedMetric string
	err = db.QueryRow(`SELECT schema_version, dimension, metric FROM index_meta`).
		Scan(&version, &storedDims, &storedMetric)
	if err != nil {
		return nil, fmt.Errorf("%w: missing or unreadable header: %v", ErrCorrupted, err)
	}
	if version != schemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrCorrupted, version)
	}
	if storedDims != dims {
		return nil, fmt.Errorf("persisted index dimension %d does not match configured %d", storedDims, dims)
	}
	if config.Metric(storedMetric) != metric {
		return nil, fmt.Errorf("persisted index metric %q does not match configured %q", storedMetric, metric)
	}

	f, err := NewFlat(dims, metric)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT chunk_id, document_id, ordinal, text, vector, metadata FROM entries ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read entries: %v", ErrCorrupted, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var blob []byte
		var meta sql.NullString
		if err := rows.Scan(&e.ChunkID, &e.DocumentID, &e.Ordinal, &e.Text, &blob, &meta); err != nil {
			return nil, fmt.Errorf("%w: failed to scan entry: %v", ErrCorrupted, err)
		}
		vec, err := blobToVector(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s: %v", ErrCorrupted, e.ChunkID, err)
		}
		if len(vec) != dims {
			return nil, fmt.Errorf("%w: entry %s has dimension %d, header says %d",
				ErrCorrupted, e.ChunkID, len(vec), dims)
		}
		e.Vector = vec
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("%w: entry %s metadata: %v", ErrCorrupted, e.ChunkID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	if err := f.Insert(entries); err != nil {
		return nil, err
	}
	return f, nil
}

func openIndexDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode=WAL&_pragma=synchronous=NORMAL&_pragma=busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open index db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping index db: %w", err)
	}
	return db, nil
}

func encodeMetadata(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "", nil
	}
	out, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// vectorToBlob packs a vector as little-endian float32 words, giving
// bit-for-bit equality across a persist/load round trip.
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], math.Float32bits(v))
	}
	return blob
}

func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vector, nil
}
